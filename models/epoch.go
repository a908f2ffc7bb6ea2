package models

import (
	"golang.org/x/crypto/blake2b"
)

// DAGEpoch is a finality checkpoint over a backward closed part of the DAG.
// Hash sets are kept sorted so the digest is the same on every node.
type DAGEpoch struct {
	BlockNumber   uint64 `json:"block_number"`
	Hash          Hash   `json:"hash"`
	Tips          []Hash `json:"tips"`
	AllNodes      []Hash `json:"all_nodes"`
	SolutionNodes []Hash `json:"solution_nodes"`
	DataNodes     []Hash `json:"data_nodes"`
}

// GenesisEpoch is epoch 0: empty and identical everywhere
func GenesisEpoch() DAGEpoch {
	ret := DAGEpoch{}
	ret.Finalise()
	return ret
}

func (e *DAGEpoch) ComputeHash() Hash {
	h, _ := blake2b.New256(nil)
	writeUint64(h, e.BlockNumber)
	for _, set := range [][]Hash{e.Tips, e.AllNodes, e.SolutionNodes, e.DataNodes} {
		writeUint64(h, uint64(len(set)))
		for i := range set {
			h.Write(set[i][:])
		}
	}
	var ret Hash
	copy(ret[:], h.Sum(nil))
	return ret
}

// Finalise sorts the hash sets and computes the epoch hash
func (e *DAGEpoch) Finalise() {
	if e.Tips == nil {
		e.Tips = []Hash{}
	}
	if e.AllNodes == nil {
		e.AllNodes = []Hash{}
	}
	if e.SolutionNodes == nil {
		e.SolutionNodes = []Hash{}
	}
	if e.DataNodes == nil {
		e.DataNodes = []Hash{}
	}
	SortHashes(e.Tips)
	SortHashes(e.AllNodes)
	SortHashes(e.SolutionNodes)
	SortHashes(e.DataNodes)
	e.Hash = e.ComputeHash()
}

func (e *DAGEpoch) HashValid() bool {
	return e.Hash == e.ComputeHash()
}
