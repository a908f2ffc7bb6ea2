package models

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// NodeType classifies the opaque payload of a DAG node
type NodeType uint8

const (
	NodeData NodeType = iota
	NodeWork
	NodeArbitrary
	NodeGenesis
)

func (t NodeType) String() string {
	switch t {
	case NodeData:
		return "DATA"
	case NodeWork:
		return "WORK"
	case NodeArbitrary:
		return "ARBITRARY"
	case NodeGenesis:
		return "GENESIS"
	}
	return "UNKNOWN"
}

func (t NodeType) Valid() bool {
	return t <= NodeGenesis
}

// DAGNode is a content addressed record of the DAG. Previous holds the hashes
// of referenced nodes or, for nodes bootstrapping a young graph, of an epoch.
type DAGNode struct {
	Hash                  Hash     `json:"hash"`
	Previous              []Hash   `json:"previous"`
	Type                  NodeType `json:"type"`
	Contents              []byte   `json:"contents"`
	ContractDigest        Hash     `json:"contract_digest"`
	Identity              []byte   `json:"identity"`
	Signature             []byte   `json:"signature"`
	OldestEpochReferenced uint64   `json:"oldest_epoch_referenced"`
	Weight                uint64   `json:"weight"`
}

// ComputeHash digests every field except the hash and the signature over it
func (n *DAGNode) ComputeHash() Hash {
	h, _ := blake2b.New256(nil)
	writeUint64(h, uint64(len(n.Previous)))
	for i := range n.Previous {
		h.Write(n.Previous[i][:])
	}
	h.Write([]byte{byte(n.Type)})
	writeBytes(h, n.Contents)
	h.Write(n.ContractDigest[:])
	writeBytes(h, n.Identity)
	writeUint64(h, n.OldestEpochReferenced)
	writeUint64(h, n.Weight)

	var ret Hash
	copy(ret[:], h.Sum(nil))
	return ret
}

// Finalise sets the hash. The node must not be mutated afterwards
func (n *DAGNode) Finalise() {
	n.Hash = n.ComputeHash()
}

// HashValid checks the hash is set and matches the contents
func (n *DAGNode) HashValid() bool {
	return !n.Hash.IsZero() && n.Hash == n.ComputeHash()
}

func writeUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeBytes(h hash.Hash, b []byte) {
	writeUint64(h, uint64(len(b)))
	h.Write(b)
}
