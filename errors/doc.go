/*
Package errors implements custom error interfaces for canal.

The idea is to reuse a small set of root errors and wrap them with
additional context. Checking if an error is of a certain kind is done by
unwrapping through the cause chain, never by string comparison. Every root
error carries a unique code so a failure can be reported to clients in a
stable manner. Extensions register their own root errors with codes above
1000.

Usage is designed around the root error instances:

	errors.ErrNotFound.New("wallet")
	errors.Wrap(err, "cannot load channel")
	errors.ErrInput.Is(err)
*/
package errors
