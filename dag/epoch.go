package dag

import (
	"sort"

	"dag-ledger/logger"
	"dag-ledger/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CurrentEpoch returns the block number of the most recent committed epoch
func (d *DAG) CurrentEpoch() uint64 {
	d.mux.Lock()
	defer d.mux.Unlock()

	return d.mostRecentEpoch
}

// CreateEpoch builds the candidate epoch n from the current tips without
// changing state. Index corruption is reported as an error, see IsIndexCorruption
func (d *DAG) CreateEpoch(n uint64) (models.DAGEpoch, error) {
	d.mux.Lock()
	defer d.mux.Unlock()

	return d.createEpochNoLock(n)
}

// ProduceEpoch creates the next epoch and commits it in one step, for a
// single node without consensus
func (d *DAG) ProduceEpoch() (models.DAGEpoch, error) {
	d.mux.Lock()
	defer d.mux.Unlock()

	epoch, err := d.createEpochNoLock(d.mostRecentEpoch + 1)
	if err != nil {
		return epoch, err
	}
	ok := d.commitEpochNoLock(&epoch)
	d.updateGaugesNoLock()
	if !ok {
		return epoch, errors.Errorf("epoch %d not committed", epoch.BlockNumber)
	}
	return epoch, nil
}

func (d *DAG) createEpochNoLock(n uint64) (models.DAGEpoch, error) {
	if n == 0 {
		return models.GenesisEpoch(), nil
	}
	if n != d.mostRecentEpoch+1 {
		return models.DAGEpoch{}, errors.Wrapf(ErrEpochNumberMismatch, "requested %d, current %d", n, d.mostRecentEpoch)
	}

	ret := models.DAGEpoch{BlockNumber: n}
	stack := make([]models.Hash, 0)
	for _, tip := range d.epochRootsNoLock() {
		ref := tip.DAGNodeReference
		if _, inPool := d.pool[ref]; !inPool {
			finalised, err := d.finalisedNoLock(ref)
			if err != nil {
				return models.DAGEpoch{}, err
			}
			if finalised {
				return models.DAGEpoch{}, errors.Wrapf(ErrTipRefersToFinalised, "tip %d -> %s", tip.ID, ref.Short())
			}
			return models.DAGEpoch{}, errors.Wrapf(ErrTipRefersNowhere, "tip %d -> %s", tip.ID, ref.Short())
		}
		ret.Tips = append(ret.Tips, ref)
		stack = append(stack, ref)
	}

	visited := newHashSet()
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.contains(h) {
			continue
		}
		visited.insert(h)

		node, inPool := d.pool[h]
		if !inPool {
			// reached the part of the graph finalised by earlier epochs
			finalised, err := d.finalisedNoLock(h)
			if err != nil {
				return models.DAGEpoch{}, err
			}
			if !finalised {
				return models.DAGEpoch{}, errors.Wrapf(ErrDanglingReference, "%s", h.Short())
			}
			continue
		}
		ret.AllNodes = append(ret.AllNodes, h)
		switch node.Type {
		case models.NodeWork:
			ret.SolutionNodes = append(ret.SolutionNodes, h)
		case models.NodeData:
			ret.DataNodes = append(ret.DataNodes, h)
		}
		stack = append(stack, node.Previous...)
	}
	ret.Finalise()
	return ret, nil
}

// epochRootsNoLock picks up to MaxTipsInEpoch tips, heaviest first
func (d *DAG) epochRootsNoLock() []*models.DAGTip {
	tips := d.sortedTipsNoLock()
	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Weight > tips[j].Weight
	})
	if len(tips) > d.params.MaxTipsInEpoch {
		tips = tips[:d.params.MaxTipsInEpoch]
	}
	return tips
}

// CommitEpoch adopts the next epoch: its nodes move from the pool (or the loose
// set) into durable storage and the retained window slides by one
func (d *DAG) CommitEpoch(epoch models.DAGEpoch) bool {
	d.mux.Lock()
	defer d.mux.Unlock()

	ret := d.commitEpochNoLock(&epoch)
	d.updateGaugesNoLock()
	return ret
}

func (d *DAG) commitEpochNoLock(epoch *models.DAGEpoch) bool {
	if epoch.BlockNumber != d.mostRecentEpoch+1 {
		logger.Logger.Debug("Rejected epoch",
			zap.Uint64("block_number", epoch.BlockNumber),
			zap.Uint64("current", d.mostRecentEpoch))
		return false
	}
	if !epoch.HashValid() {
		logger.Logger.Debug("Rejected epoch: hash mismatch", zap.Uint64("block_number", epoch.BlockNumber))
		return false
	}

	notLocal := make([]models.Hash, 0)
	for _, h := range epoch.AllNodes {
		node, found := d.pool[h]
		if !found {
			node, found = d.loose[h]
		}
		if !found {
			_, stored, err := d.nodes.GetNode(h)
			if err != nil {
				logger.Logger.Error("Failed to read node store", zap.Error(err))
				return false
			}
			if !stored {
				notLocal = append(notLocal, h)
			}
			continue
		}
		if err := d.nodes.PutNode(node); err != nil {
			logger.Logger.Error("Failed to store DAG node", zap.String("hash", h.Short()), zap.Error(err))
			return false
		}
	}
	if err := d.epochs.PutEpoch(epoch); err != nil {
		logger.Logger.Error("Failed to store epoch", zap.Uint64("block_number", epoch.BlockNumber), zap.Error(err))
		return false
	}
	if err := d.epochs.SetIndex(epoch.BlockNumber, epoch.Hash); err != nil {
		logger.Logger.Error("Failed to index epoch", zap.Uint64("block_number", epoch.BlockNumber), zap.Error(err))
		return false
	}
	if err := d.epochs.SetHead(epoch.Hash); err != nil {
		logger.Logger.Error("Failed to set HEAD", zap.Error(err))
		return false
	}

	for _, h := range epoch.AllNodes {
		if d.removeFromPoolNoLock(h) == nil {
			d.removeLooseNoLock(h)
		}
	}

	// slide the window, evicted epochs stay in storage
	d.window.PushBack(d.current)
	for uint64(d.window.Len()) > d.params.EpochValidityPeriod-1 {
		evicted := d.window.PopFront()
		logger.Logger.Debug("Epoch left the retained window", zap.Uint64("block_number", evicted.epoch.BlockNumber))
	}
	d.current = retainedEpoch{epoch: *epoch, members: newHashSet(epoch.AllNodes...)}
	d.mostRecentEpoch = epoch.BlockNumber

	d.refreshStaleTipsNoLock()

	// nodes may have waited on the epoch itself or on nodes it finalised
	for _, h := range epoch.AllNodes {
		d.healNoLock(h)
	}
	d.healNoLock(epoch.Hash)
	for _, h := range notLocal {
		d.epochMissing.insert(h)
	}
	if len(notLocal) > 0 {
		logger.Logger.Warn("Committed epoch references nodes not available locally",
			zap.Uint64("block_number", epoch.BlockNumber),
			zap.Int("missing", len(notLocal)))
	}

	if err := d.flushNoLock(); err != nil {
		// writes stay buffered and go out with the next flush
		logger.Logger.Error("Failed to flush DAG storage", zap.Error(err))
	}
	d.metrics.epochs.Inc()
	logger.Logger.Info("Committed epoch",
		zap.Uint64("block_number", epoch.BlockNumber),
		zap.String("hash", epoch.Hash.Short()),
		zap.Int("nodes", len(epoch.AllNodes)))
	return true
}

// SatisfyEpoch checks an epoch proposed by a peer without adopting it. Nodes
// not available locally are reported through GetRecentlyMissing and do not
// make the epoch invalid
func (d *DAG) SatisfyEpoch(epoch models.DAGEpoch) bool {
	d.mux.Lock()
	defer d.mux.Unlock()

	if epoch.BlockNumber != d.mostRecentEpoch+1 || !epoch.HashValid() {
		return false
	}
	members := newHashSet(epoch.AllNodes...)
	for _, h := range epoch.Tips {
		if !members.contains(h) {
			logger.Logger.Debug("Epoch tip outside epoch nodes", zap.String("tip", h.Short()))
			return false
		}
	}
	solutions := newHashSet(epoch.SolutionNodes...)
	data := newHashSet(epoch.DataNodes...)

	allFound := true
	for _, h := range epoch.AllNodes {
		node, found := d.lookupNodeNoLock(h)
		if !found {
			d.epochMissing.insert(h)
			allFound = false
			continue
		}
		if solutions.contains(h) != (node.Type == models.NodeWork) || data.contains(h) != (node.Type == models.NodeData) {
			logger.Logger.Debug("Epoch node type partition mismatch", zap.String("hash", h.Short()))
			return false
		}
		if !d.validReferencesNoLock(node) {
			logger.Logger.Debug("Epoch node with invalid references", zap.String("hash", h.Short()))
			return false
		}
	}
	if !allFound {
		d.updateGaugesNoLock()
	}
	return true
}

// validReferencesNoLock checks weight and oldest epoch referenced against the parents
func (d *DAG) validReferencesNoLock(node *models.DAGNode) bool {
	switch len(node.Previous) {
	case 0:
		return false
	case 1:
		e, ok := d.retainedEpochNoLock(node.Previous[0])
		return ok && node.OldestEpochReferenced == e.BlockNumber && node.Weight == 0
	}
	if node.OldestEpochReferenced < d.oldestRetainedNoLock() {
		return false
	}
	var (
		oldest    uint64
		maxWeight uint64
		first     = true
	)
	for _, p := range node.Previous {
		var pOldest, pWeight uint64
		if e, isEpoch := d.retainedEpochNoLock(p); isEpoch {
			pOldest = e.BlockNumber
		} else {
			parent, found := d.lookupNodeNoLock(p)
			if !found {
				// cannot verify yet
				d.epochMissing.insert(p)
				return true
			}
			pOldest, pWeight = parent.OldestEpochReferenced, parent.Weight
		}
		if first || pOldest < oldest {
			oldest = pOldest
		}
		if first || pWeight > maxWeight {
			maxWeight = pWeight
		}
		first = false
	}
	return node.OldestEpochReferenced == oldest && node.Weight == maxWeight+1
}

// RevertToEpoch rolls the epoch sequence back to n. Nodes of the reverted
// epochs are not re-admitted, the caller decides on that
func (d *DAG) RevertToEpoch(n uint64) bool {
	d.mux.Lock()
	defer d.mux.Unlock()

	ret := d.revertNoLock(n)
	d.updateGaugesNoLock()
	return ret
}

func (d *DAG) revertNoLock(n uint64) bool {
	if n > d.mostRecentEpoch {
		logger.Logger.Debug("Rejected revert to a future epoch",
			zap.Uint64("target", n),
			zap.Uint64("current", d.mostRecentEpoch))
		return false
	}
	if n == d.mostRecentEpoch {
		return true
	}
	if n == 0 {
		if err := d.resetToGenesisNoLock(); err != nil {
			logger.Logger.Error("Failed to reset DAG to genesis", zap.Error(err))
			return false
		}
		logger.Logger.Info("Reverted DAG to genesis")
		return true
	}

	reverted := newHashSet()
	for b := d.mostRecentEpoch; b > n; b-- {
		e, err := d.epochAtNoLock(b)
		if err != nil {
			logger.Logger.Warn("Reverted epoch not in store", zap.Uint64("block_number", b), zap.Error(err))
		} else {
			for _, h := range e.AllNodes {
				reverted.insert(h)
			}
		}
		if err := d.epochs.EraseIndex(b); err != nil {
			logger.Logger.Error("Failed to erase epoch index", zap.Uint64("block_number", b), zap.Error(err))
		}
	}

	head, err := d.epochAtNoLock(n)
	if err == nil {
		err = d.rebuildWindowNoLock(head)
	}
	if err == nil {
		err = d.epochs.SetHead(head.Hash)
	}
	if err != nil {
		logger.Logger.Error("Failed to rebuild epoch window, resetting to genesis", zap.Uint64("target", n), zap.Error(err))
		if err := d.resetToGenesisNoLock(); err != nil {
			logger.Logger.Error("Failed to reset DAG to genesis", zap.Error(err))
		}
		return false
	}

	d.reclassifyNoLock()
	if err := d.flushNoLock(); err != nil {
		logger.Logger.Error("Failed to flush DAG storage", zap.Error(err))
	}
	logger.Logger.Info("Reverted DAG",
		zap.Uint64("block_number", n),
		zap.Int("reverted_nodes", len(reverted)))
	return true
}

// reclassifyNoLock turns pool nodes whose references no longer resolve into loose nodes
func (d *DAG) reclassifyNoLock() {
	queue := make([]models.Hash, 0, len(d.pool))
	for h := range d.pool {
		queue = append(queue, h)
	}
	models.SortHashes(queue)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		node, inPool := d.pool[h]
		if !inPool {
			continue
		}
		missing := d.missingReferencesNoLock(node)
		if len(missing) == 0 {
			continue
		}
		for c := range d.children[h] {
			queue = append(queue, c)
		}
		d.removeFromPoolNoLock(h)
		d.addLooseNoLock(node, missing)
	}
}
