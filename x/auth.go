// Package x holds the interfaces shared by all extensions, most importantly
// the Authenticator used to resolve the identity of the caller of an
// operation.
package x

import (
	"github.com/iov-one/canal"
)

// Authenticator is an interface we can use to extract authentication info
// from the context. This should be passed into the constructor of
// controllers, so we can plug in another authentication system, rather than
// hard-coding one implementation for all extensions.
type Authenticator interface {
	// GetConditions reveals all Conditions fulfilled, you may want
	// GetAddresses helper.
	GetConditions(canal.Context) []canal.Condition
	// HasAddress checks if any condition matches this address.
	HasAddress(canal.Context, canal.Address) bool
}

// MultiAuth chains together many Authenticators into one.
type MultiAuth struct {
	impls []Authenticator
}

var _ Authenticator = MultiAuth{}

// ChainAuth groups together a series of Authenticator.
func ChainAuth(impls ...Authenticator) MultiAuth {
	return MultiAuth{impls}
}

// GetConditions combines all Conditions from all Authenticators.
func (m MultiAuth) GetConditions(ctx canal.Context) []canal.Condition {
	var res []canal.Condition
	for _, impl := range m.impls {
		add := impl.GetConditions(ctx)
		if len(add) > 0 {
			res = append(res, add...)
		}
	}
	return res
}

// HasAddress returns true iff any Authenticator supports this address.
func (m MultiAuth) HasAddress(ctx canal.Context, addr canal.Address) bool {
	for _, impl := range m.impls {
		if impl.HasAddress(ctx, addr) {
			return true
		}
	}
	return false
}

// GetAddresses wraps the GetConditions method of any Authenticator.
func GetAddresses(ctx canal.Context, auth Authenticator) []canal.Address {
	perms := auth.GetConditions(ctx)
	addrs := make([]canal.Address, len(perms))
	for i, p := range perms {
		addrs[i] = p.Address()
	}
	return addrs
}

// MainSigner returns the first authenticated address, or nil if there is
// none. By convention this is the caller of the operation.
func MainSigner(ctx canal.Context, auth Authenticator) canal.Address {
	signers := auth.GetConditions(ctx)
	if len(signers) == 0 {
		return nil
	}
	return signers[0].Address()
}
