package dag

import (
	"dag-ledger/logger"
	"dag-ledger/models"

	"go.uber.org/zap"
)

// refreshStaleTipsNoLock prunes pool nodes whose references left the retained
// window. The walk goes backward from each stale tip and stops at nodes still
// inside the window, which become tips once nothing references them
func (d *DAG) refreshStaleTipsNoLock() {
	stack := make([]models.Hash, 0)
	for _, tip := range d.sortedTipsNoLock() {
		if d.isStaleNoLock(tip.OldestEpochReferenced) {
			stack = append(stack, tip.DAGNodeReference)
		}
	}
	if len(stack) == 0 {
		return
	}

	visited := newHashSet()
	stale := make([]models.Hash, 0)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.contains(h) {
			continue
		}
		visited.insert(h)

		node, inPool := d.pool[h]
		if !inPool || !d.isStaleNoLock(node.OldestEpochReferenced) {
			continue
		}
		stale = append(stale, h)
		stack = append(stack, node.Previous...)
	}

	for _, h := range stale {
		d.removeFromPoolNoLock(h)
	}
	d.metrics.pruned.Add(float64(len(stale)))
	logger.Logger.Info("Pruned stale DAG nodes",
		zap.Int("nodes", len(stale)),
		zap.Uint64("epoch", d.mostRecentEpoch))
}
