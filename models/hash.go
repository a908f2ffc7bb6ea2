package models

import (
	"bytes"
	"encoding/hex"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const HashSize = blake2b.Size256

// Hash is a content digest identifying a DAG node or an epoch
type Hash [HashSize]byte

// HashFromHex parses a hex encoded hash
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, errors.Wrapf(err, "invalid hash %q", s)
	}
	if len(b) != HashSize {
		return h, errors.Errorf("invalid hash length %d, expected %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex characters, for logs
func (h Hash) Short() string {
	return h.String()[:8]
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// SortHashes sorts in place in byte order and returns the slice
func SortHashes(hashes []Hash) []Hash {
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes
}
