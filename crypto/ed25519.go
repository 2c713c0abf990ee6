// Package crypto wraps the ed25519 primitives used to authenticate off
// ledger balance updates. Keys are raw byte slices so they can be embedded
// in persisted models without extra conversion.
package crypto

import (
	"github.com/iov-one/canal"
	"github.com/iov-one/canal/errors"
	"golang.org/x/crypto/ed25519"
)

// ExtensionName is used for the conditions we derive from public keys.
const ExtensionName = "sigs"

// PublicKey is a raw ed25519 public key.
type PublicKey []byte

// Verify returns true if the signature was created for this message with
// the private key matching this public key.
func (p PublicKey) Verify(message []byte, sig Signature) bool {
	if len(p) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(p), message, sig)
}

// Condition encodes the public key into a canal condition.
func (p PublicKey) Condition() canal.Condition {
	return canal.NewCondition(ExtensionName, "ed25519", p)
}

// Address is a shortcut for Condition().Address().
func (p PublicKey) Address() canal.Address {
	return p.Condition().Address()
}

// Validate returns an error if this is not a well formed key.
func (p PublicKey) Validate() error {
	if len(p) != ed25519.PublicKeySize {
		return errors.ErrInput.Newf("public key size: %d", len(p))
	}
	return nil
}

// Signature is a raw ed25519 signature.
type Signature []byte

// Validate returns an error if this is not a well formed signature.
func (s Signature) Validate() error {
	if len(s) != ed25519.SignatureSize {
		return errors.ErrInput.Newf("signature size: %d", len(s))
	}
	return nil
}

// PrivateKey is a raw ed25519 private key. It must never be persisted by
// any bucket; only the tests and client-side tooling hold one.
type PrivateKey []byte

// Sign returns a matching signature for this private key.
func (p PrivateKey) Sign(message []byte) (Signature, error) {
	if len(p) != ed25519.PrivateKeySize {
		return nil, errors.ErrInput.Newf("private key size: %d", len(p))
	}
	return Signature(ed25519.Sign(ed25519.PrivateKey(p), message)), nil
}

// PublicKey returns the corresponding public key.
func (p PrivateKey) PublicKey() PublicKey {
	pub := ed25519.PrivateKey(p).Public().(ed25519.PublicKey)
	return PublicKey(pub)
}

// GenPrivKeyEd25519 returns a random new private key.
func GenPrivKeyEd25519() PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return PrivateKey(priv)
}

// PrivKeyEd25519FromSeed will deterministically generate a private key from
// a given seed. Use if you have a strong source of external randomness, or
// for deterministic keys in test cases.
func PrivKeyEd25519FromSeed(seed []byte) PrivateKey {
	return PrivateKey(ed25519.NewKeyFromSeed(seed))
}
