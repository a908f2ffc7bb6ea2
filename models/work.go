package models

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Work is a proof-of-work submission carried by a WORK node. Only the fields
// tagged for json travel in the node contents, ContractDigest and Miner are
// taken from the node provenance.
type Work struct {
	ContractDigest Hash   `json:"-"`
	Miner          []byte `json:"-"`
	BlockNumber    uint64 `json:"block_number"`
	Nonce          uint64 `json:"nonce"`
	Score          int64  `json:"score"`
}

func (w *Work) Bytes() []byte {
	data, _ := json.Marshal(w)
	return data
}

// WorkFromNode decodes the payload of a WORK node and re-attaches provenance
func WorkFromNode(node *DAGNode) (*Work, error) {
	if node.Type != NodeWork {
		return nil, errors.Errorf("node %s is %s, not WORK", node.Hash.Short(), node.Type)
	}
	var w Work
	if err := json.Unmarshal(node.Contents, &w); err != nil {
		return nil, errors.Wrapf(err, "decoding work in node %s", node.Hash.Short())
	}
	w.ContractDigest = node.ContractDigest
	w.Miner = append([]byte(nil), node.Identity...)
	return &w, nil
}
