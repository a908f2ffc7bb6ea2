package dag

import (
	"dag-ledger/logger"
	"dag-ledger/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// GetRecentlyAdded drains the nodes admitted since the previous call
func (d *DAG) GetRecentlyAdded() []models.DAGNode {
	d.mux.Lock()
	defer d.mux.Unlock()

	ret := d.recentlyAdded
	d.recentlyAdded = nil
	return ret
}

// GetRecentlyMissing returns the hashes known to be referenced but not available
func (d *DAG) GetRecentlyMissing() []models.Hash {
	d.mux.Lock()
	defer d.mux.Unlock()

	missing := newHashSet()
	for h := range d.looseWaiting {
		missing.insert(h)
	}
	for h := range d.epochMissing {
		missing.insert(h)
	}
	return missing.sorted()
}

func (d *DAG) GetDAGNode(h models.Hash) (models.DAGNode, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()

	node, found := d.lookupNodeNoLock(h)
	if !found {
		return models.DAGNode{}, false
	}
	return *node, true
}

// GetWork decodes the work carried by a WORK node
func (d *DAG) GetWork(h models.Hash) (*models.Work, error) {
	d.mux.Lock()
	defer d.mux.Unlock()

	node, found := d.lookupNodeNoLock(h)
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "node %s", h.Short())
	}
	if node.Type != models.NodeWork {
		return nil, errors.Wrapf(ErrNotWork, "node %s is %s", h.Short(), node.Type)
	}
	return models.WorkFromNode(node)
}

// HasEpoch tests retained epochs first, then durable storage
func (d *DAG) HasEpoch(h models.Hash) bool {
	d.mux.Lock()
	defer d.mux.Unlock()

	if _, retained := d.retainedEpochNoLock(h); retained {
		return true
	}
	_, found, err := d.epochs.GetEpoch(h)
	if err != nil {
		logger.Logger.Warn("Failed to read epoch store", zap.Error(err))
	}
	return found
}

// GetLatest returns the nodes of the current epoch or, with
// previousEpochOnly false, of every retained epoch plus the live pool
func (d *DAG) GetLatest(previousEpochOnly bool) []models.DAGNode {
	d.mux.Lock()
	defer d.mux.Unlock()

	epochs := []*models.DAGEpoch{&d.current.epoch}
	if !previousEpochOnly {
		for i := d.window.Len() - 1; i >= 0; i-- {
			e := d.window.At(i)
			epochs = append(epochs, &e.epoch)
		}
	}
	ret := make([]models.DAGNode, 0)
	for _, e := range epochs {
		for _, h := range e.AllNodes {
			if node, found := d.lookupNodeNoLock(h); found {
				ret = append(ret, *node)
			}
		}
	}
	if !previousEpochOnly {
		for _, h := range d.poolHashesNoLock() {
			ret = append(ret, *d.pool[h])
		}
	}
	return ret
}

// Tips returns a copy of the tip index in creation order
func (d *DAG) Tips() []models.DAGTip {
	d.mux.Lock()
	defer d.mux.Unlock()

	tips := d.sortedTipsNoLock()
	ret := make([]models.DAGTip, len(tips))
	for i, t := range tips {
		ret[i] = *t
	}
	return ret
}

// Stats is a snapshot of the DAG sizes
type Stats struct {
	CurrentEpoch   uint64      `json:"current_epoch"`
	EpochHash      models.Hash `json:"epoch_hash"`
	PoolSize       int         `json:"pool_size"`
	Tips           int         `json:"tips"`
	LooseNodes     int         `json:"loose_nodes"`
	Missing        int         `json:"missing"`
	RetainedEpochs int         `json:"retained_epochs"`
}

func (d *DAG) Stats() Stats {
	d.mux.Lock()
	defer d.mux.Unlock()

	return Stats{
		CurrentEpoch:   d.mostRecentEpoch,
		EpochHash:      d.current.epoch.Hash,
		PoolSize:       len(d.pool),
		Tips:           len(d.tips),
		LooseNodes:     len(d.loose),
		Missing:        len(d.looseWaiting) + len(d.epochMissing),
		RetainedEpochs: d.window.Len() + 1,
	}
}

// IsLoose reports whether h is held in the loose set
func (d *DAG) IsLoose(h models.Hash) bool {
	d.mux.Lock()
	defer d.mux.Unlock()

	_, ok := d.loose[h]
	return ok
}

func (d *DAG) lookupNodeNoLock(h models.Hash) (*models.DAGNode, bool) {
	if node, ok := d.pool[h]; ok {
		return node, true
	}
	if node, ok := d.loose[h]; ok {
		return node, true
	}
	node, found, err := d.nodes.GetNode(h)
	if err != nil {
		logger.Logger.Warn("Failed to read node store", zap.String("hash", h.Short()), zap.Error(err))
		return nil, false
	}
	return node, found
}

func (d *DAG) poolHashesNoLock() []models.Hash {
	ret := make([]models.Hash, 0, len(d.pool))
	for h := range d.pool {
		ret = append(ret, h)
	}
	return models.SortHashes(ret)
}
