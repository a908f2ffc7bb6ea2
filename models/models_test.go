package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeHash(t *testing.T) {
	genesis := GenesisEpoch()
	node := DAGNode{
		Previous: []Hash{genesis.Hash},
		Type:     NodeData,
		Contents: []byte("hello"),
		Identity: []byte("me"),
	}
	node.Finalise()
	require.True(t, node.HashValid())

	tampered := node
	tampered.Contents = []byte("hellO")
	require.False(t, tampered.HashValid())

	// the signature is not covered
	signed := node
	signed.Signature = []byte{1, 2, 3}
	require.True(t, signed.HashValid())

	require.False(t, (&DAGNode{}).HashValid())
}

func TestEpochHashIsOrderIndependent(t *testing.T) {
	a := DAGNode{Contents: []byte("a")}
	a.Finalise()
	b := DAGNode{Contents: []byte("b")}
	b.Finalise()

	e1 := DAGEpoch{BlockNumber: 1, Tips: []Hash{a.Hash, b.Hash}, AllNodes: []Hash{a.Hash, b.Hash}}
	e1.Finalise()
	e2 := DAGEpoch{BlockNumber: 1, Tips: []Hash{b.Hash, a.Hash}, AllNodes: []Hash{b.Hash, a.Hash}}
	e2.Finalise()
	require.Equal(t, e1.Hash, e2.Hash)

	e3 := e1
	e3.BlockNumber = 2
	require.NotEqual(t, e1.Hash, e3.ComputeHash())

	require.Equal(t, GenesisEpoch().Hash, GenesisEpoch().Hash)
}

func TestHashJSON(t *testing.T) {
	n := DAGNode{Contents: []byte("x")}
	n.Finalise()
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var back DAGNode
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, n.Hash, back.Hash)
	require.True(t, back.HashValid())

	_, err = HashFromHex("abcd")
	require.Error(t, err)
}

func TestWorkFromNode(t *testing.T) {
	w := Work{BlockNumber: 4, Nonce: 99, Score: -12}
	node := DAGNode{
		Type:           NodeWork,
		Contents:       w.Bytes(),
		ContractDigest: Hash{7},
		Identity:       []byte("miner"),
	}
	node.Finalise()

	got, err := WorkFromNode(&node)
	require.NoError(t, err)
	require.EqualValues(t, 4, got.BlockNumber)
	require.EqualValues(t, 99, got.Nonce)
	require.EqualValues(t, -12, got.Score)
	require.Equal(t, Hash{7}, got.ContractDigest)
	require.Equal(t, []byte("miner"), got.Miner)

	node.Type = NodeData
	_, err = WorkFromNode(&node)
	require.Error(t, err)
}
