package repository

import (
	"encoding/json"
	"strconv"

	"dag-ledger/db"
	"dag-ledger/models"

	"github.com/pkg/errors"
)

// HeadKey is the epoch-index entry naming the most recent epoch
const HeadKey = "HEAD"

// It abstracts the storage layer from the business logic
type NodeRepositoryInterface interface {
	PutNode(node *models.DAGNode) error
	GetNode(hash models.Hash) (*models.DAGNode, bool, error)
	EraseNode(hash models.Hash) error
	Flush() error
}

// EpochRepositoryInterface stores epochs by hash plus the epoch-index stack,
// block number -> epoch hash, topped by HEAD
type EpochRepositoryInterface interface {
	PutEpoch(epoch *models.DAGEpoch) error
	GetEpoch(hash models.Hash) (*models.DAGEpoch, bool, error)
	SetIndex(blockNumber uint64, hash models.Hash) error
	GetIndex(blockNumber uint64) (models.Hash, bool, error)
	EraseIndex(blockNumber uint64) error
	SetHead(hash models.Hash) error
	GetHead() (models.Hash, bool, error)
	Flush() error
}

// NodeRepository implements the NodeRepositoryInterface on a KVStore
type NodeRepository struct {
	db db.KVStore
}

// NewNodeRepository creates and returns a new NodeRepository instance
func NewNodeRepository(store db.KVStore) *NodeRepository {
	return &NodeRepository{db: store}
}

// PutNode stores a node under its hash
func (r *NodeRepository) PutNode(node *models.DAGNode) error {
	data, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return r.db.Set(node.Hash.Bytes(), data)
}

// GetNode retrieves a node by its hash
func (r *NodeRepository) GetNode(hash models.Hash) (*models.DAGNode, bool, error) {
	data, found, err := r.db.Get(hash.Bytes())
	if err != nil || !found {
		return nil, false, err
	}
	var node models.DAGNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, false, errors.Wrapf(err, "decoding node %s", hash.Short())
	}
	return &node, true, nil
}

func (r *NodeRepository) EraseNode(hash models.Hash) error {
	return r.db.Erase(hash.Bytes())
}

func (r *NodeRepository) Flush() error {
	return r.db.Flush()
}

// EpochRepository implements the EpochRepositoryInterface on a KVStore
type EpochRepository struct {
	db db.KVStore
}

func NewEpochRepository(store db.KVStore) *EpochRepository {
	return &EpochRepository{db: store}
}

func (r *EpochRepository) PutEpoch(epoch *models.DAGEpoch) error {
	data, err := json.Marshal(epoch)
	if err != nil {
		return err
	}
	return r.db.Set(epoch.Hash.Bytes(), data)
}

func (r *EpochRepository) GetEpoch(hash models.Hash) (*models.DAGEpoch, bool, error) {
	data, found, err := r.db.Get(hash.Bytes())
	if err != nil || !found {
		return nil, false, err
	}
	var epoch models.DAGEpoch
	if err := json.Unmarshal(data, &epoch); err != nil {
		return nil, false, errors.Wrapf(err, "decoding epoch %s", hash.Short())
	}
	return &epoch, true, nil
}

func (r *EpochRepository) SetIndex(blockNumber uint64, hash models.Hash) error {
	return r.db.Set(indexKey(blockNumber), hash.Bytes())
}

func (r *EpochRepository) GetIndex(blockNumber uint64) (models.Hash, bool, error) {
	return r.getHash(indexKey(blockNumber))
}

func (r *EpochRepository) EraseIndex(blockNumber uint64) error {
	return r.db.Erase(indexKey(blockNumber))
}

func (r *EpochRepository) SetHead(hash models.Hash) error {
	return r.db.Set([]byte(HeadKey), hash.Bytes())
}

func (r *EpochRepository) GetHead() (models.Hash, bool, error) {
	return r.getHash([]byte(HeadKey))
}

func (r *EpochRepository) Flush() error {
	return r.db.Flush()
}

func (r *EpochRepository) getHash(key []byte) (models.Hash, bool, error) {
	var ret models.Hash
	data, found, err := r.db.Get(key)
	if err != nil || !found {
		return ret, false, err
	}
	if len(data) != models.HashSize {
		return ret, false, errors.Errorf("corrupted epoch index entry %q", key)
	}
	copy(ret[:], data)
	return ret, true, nil
}

// index keys are decimal strings, never HashSize long, so they cannot collide with hashes
func indexKey(blockNumber uint64) []byte {
	return []byte(strconv.FormatUint(blockNumber, 10))
}
