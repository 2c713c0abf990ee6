package canaltest

import (
	"github.com/iov-one/canal"
	"github.com/iov-one/canal/crypto"
)

func NewKey() crypto.PrivateKey {
	return crypto.GenPrivKeyEd25519()
}

func NewCondition() canal.Condition {
	return NewKey().PublicKey().Condition()
}
