/*
Package canal provides the common types that tie the micropayment channel
engine together.

Canal keeps value locked under a custodian while two parties exchange
balance updates off the ledger. Only opening and closing a channel touch
the ledger. The root package defines the primitives shared by all
extensions: addresses and conditions, the key-value store interfaces and
the request context helpers. The actual channel logic lives in x/paychan
and the custodian wallet ledger in x/cash.
*/
package canal
