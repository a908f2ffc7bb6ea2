package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Signer produces the identity and signature attached to locally produced nodes
type Signer interface {
	Identity() []byte
	Sign(msg []byte) ([]byte, error)
}

type ED25519Signer struct {
	priv ed25519.PrivateKey
}

// New generates a fresh key pair
func New() (*ED25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating ed25519 key")
	}
	return &ED25519Signer{priv: priv}, nil
}

// FromSeedHex restores a signer from a hex encoded 32 byte seed
func FromSeedHex(seedHex string) (*ED25519Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, errors.Wrap(err, "decoding signer seed")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("wrong seed size %d, expected %d", len(seed), ed25519.SeedSize)
	}
	return &ED25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *ED25519Signer) Identity() []byte {
	return append([]byte(nil), s.priv.Public().(ed25519.PublicKey)...)
}

func (s *ED25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

func (s *ED25519Signer) SeedHex() string {
	return hex.EncodeToString(s.priv.Seed())
}

// Verify checks sig over msg for the given identity
func Verify(identity, msg, sig []byte) bool {
	if len(identity) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(identity, msg, sig)
}
