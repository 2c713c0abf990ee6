/*
Package cash implements the custodian wallet ledger.

Every principal, as well as every payment channel escrow account, owns a
wallet holding an integer amount in the smallest currency unit. The
controller moves value between wallets and fails loudly when the source
cannot cover the transfer. All other extensions use the Controller
interface as their fund transfer primitive and never touch wallets
directly.
*/
package cash
