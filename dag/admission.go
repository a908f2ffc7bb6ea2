package dag

import (
	"dag-ledger/logger"
	"dag-ledger/models"

	"go.uber.org/zap"
)

// AddTransaction builds, signs and admits a node carrying payload
func (d *DAG) AddTransaction(payload []byte, t models.NodeType) (models.Hash, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()

	return d.produceNoLock(t, payload, models.Hash{})
}

// AddWork admits a WORK node for the solution. Contract digest and miner
// travel as node provenance, not in the payload
func (d *DAG) AddWork(work models.Work) (models.Hash, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()

	return d.produceNoLock(models.NodeWork, work.Bytes(), work.ContractDigest)
}

func (d *DAG) AddArbitrary(payload []byte) (models.Hash, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()

	return d.produceNoLock(models.NodeArbitrary, payload, models.Hash{})
}

// AddDAGNode admits a node received from a peer, already signed
func (d *DAG) AddDAGNode(node models.DAGNode) bool {
	d.mux.Lock()
	defer d.mux.Unlock()

	ret := d.addNodeNoLock(&node)
	d.updateGaugesNoLock()
	return ret
}

func (d *DAG) produceNoLock(t models.NodeType, contents []byte, contractDigest models.Hash) (models.Hash, bool) {
	node := &models.DAGNode{
		Type:           t,
		Contents:       append([]byte(nil), contents...),
		ContractDigest: contractDigest,
		Identity:       d.signer.Identity(),
	}
	d.setReferencesNoLock(node)
	node.Finalise()

	sig, err := d.signer.Sign(node.Hash.Bytes())
	if err != nil {
		logger.Logger.Error("Failed to sign node", zap.String("hash", node.Hash.Short()), zap.Error(err))
		return models.Hash{}, false
	}
	node.Signature = sig

	ret := d.addNodeNoLock(node)
	d.updateGaugesNoLock()
	return node.Hash, ret
}

// addNodeNoLock runs the admission pipeline. Loose nodes count as accepted
func (d *DAG) addNodeNoLock(node *models.DAGNode) bool {
	if !node.HashValid() {
		d.reject(node, "hash mismatch")
		return false
	}
	if d.epochMissing.contains(node.Hash) && d.finalisedInWindowNoLock(node.Hash) {
		// a node of a committed epoch we did not have
		return d.storeLateNodeNoLock(node)
	}
	if d.isDuplicateNoLock(node.Hash) {
		d.reject(node, "duplicate")
		return false
	}
	if d.isStaleNoLock(node.OldestEpochReferenced) {
		d.reject(node, "stale reference")
		return false
	}
	if missing := d.missingReferencesNoLock(node); len(missing) > 0 {
		d.addLooseNoLock(node, missing)
		return true
	}
	if len(node.Previous) == 0 || !node.Type.Valid() {
		d.reject(node, "invalid structure")
		return false
	}
	d.insertNoLock(node)
	d.healNoLock(node.Hash)
	return true
}

func (d *DAG) reject(node *models.DAGNode, reason string) {
	d.metrics.rejected.Inc()
	logger.Logger.Debug("Rejected DAG node",
		zap.String("hash", node.Hash.Short()),
		zap.String("reason", reason))
}

func (d *DAG) isDuplicateNoLock(h models.Hash) bool {
	if _, inPool := d.pool[h]; inPool {
		return true
	}
	if _, isLoose := d.loose[h]; isLoose {
		return true
	}
	return d.finalisedInWindowNoLock(h)
}

func (d *DAG) missingReferencesNoLock(node *models.DAGNode) []models.Hash {
	var ret []models.Hash
	for _, p := range node.Previous {
		if !d.knownNoLock(p) {
			ret = append(ret, p)
		}
	}
	return ret
}

// insertNoLock puts a resolvable node into the pool and maintains the tips
func (d *DAG) insertNoLock(node *models.DAGNode) {
	d.pool[node.Hash] = node
	for _, p := range node.Previous {
		s, ok := d.children[p]
		if !ok {
			s = newHashSet()
			d.children[p] = s
		}
		s.insert(node.Hash)
		d.removeTipNoLock(p)
	}
	if len(d.children[node.Hash]) == 0 {
		d.newTipNoLock(node)
	}
	d.epochMissing.remove(node.Hash)
	d.recentlyAdded = append(d.recentlyAdded, *node)
	d.metrics.admitted.Inc()
}

// removeFromPoolNoLock drops the node from the pool and tip index. A parent left
// without referrers in the pool becomes a tip again unless it is stale
func (d *DAG) removeFromPoolNoLock(h models.Hash) *models.DAGNode {
	node, ok := d.pool[h]
	if !ok {
		return nil
	}
	delete(d.pool, h)
	d.removeTipNoLock(h)
	for _, p := range node.Previous {
		s := d.children[p]
		s.remove(h)
		if len(s) > 0 {
			continue
		}
		delete(d.children, p)
		if parent, inPool := d.pool[p]; inPool && !d.isStaleNoLock(parent.OldestEpochReferenced) {
			d.newTipNoLock(parent)
		}
	}
	return node
}

func (d *DAG) addLooseNoLock(node *models.DAGNode, missing []models.Hash) {
	d.loose[node.Hash] = node
	for _, m := range missing {
		d.looseWaiting[m] = append(d.looseWaiting[m], node.Hash)
	}
	d.metrics.loose.Inc()
	logger.Logger.Debug("Loose DAG node",
		zap.String("hash", node.Hash.Short()),
		zap.Int("missing", len(missing)))
}

func (d *DAG) removeLooseNoLock(h models.Hash) *models.DAGNode {
	node, ok := d.loose[h]
	if !ok {
		return nil
	}
	delete(d.loose, h)
	for _, p := range node.Previous {
		waiting := d.looseWaiting[p]
		for i := 0; i < len(waiting); i++ {
			if waiting[i] == h {
				waiting = append(waiting[:i], waiting[i+1:]...)
				i--
			}
		}
		if len(waiting) == 0 {
			delete(d.looseWaiting, p)
		} else {
			d.looseWaiting[p] = waiting
		}
	}
	return node
}

// awaitedNoLock: some reference of the loose node is still registered as missing
func (d *DAG) awaitedNoLock(node *models.DAGNode) bool {
	for _, p := range node.Previous {
		for _, w := range d.looseWaiting[p] {
			if w == node.Hash {
				return true
			}
		}
	}
	return false
}

// healNoLock re-admits loose nodes unblocked by h becoming known, transitively.
// A work list is used instead of recursion so long loose chains do not grow the stack.
func (d *DAG) healNoLock(h models.Hash) {
	queue := []models.Hash{h}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		d.epochMissing.remove(cur)
		waiting, ok := d.looseWaiting[cur]
		if !ok {
			continue
		}
		delete(d.looseWaiting, cur)

		for _, w := range waiting {
			node, isLoose := d.loose[w]
			if !isLoose || d.awaitedNoLock(node) {
				continue
			}
			delete(d.loose, w)

			if missing := d.missingReferencesNoLock(node); len(missing) > 0 {
				logger.Logger.Warn("DAG node still loose after its dependency resolved",
					zap.String("hash", node.Hash.Short()),
					zap.String("resolved", cur.Short()),
					zap.Int("missing", len(missing)))
				d.addLooseNoLock(node, missing)
				continue
			}
			if d.isStaleNoLock(node.OldestEpochReferenced) {
				d.reject(node, "stale reference")
				continue
			}
			if len(node.Previous) == 0 || !node.Type.Valid() {
				d.reject(node, "invalid structure")
				continue
			}
			d.insertNoLock(node)
			queue = append(queue, w)
		}
	}
}

// storeLateNodeNoLock persists a node that a committed epoch names but which arrived afterwards
func (d *DAG) storeLateNodeNoLock(node *models.DAGNode) bool {
	if err := d.nodes.PutNode(node); err != nil {
		logger.Logger.Error("Failed to store DAG node", zap.String("hash", node.Hash.Short()), zap.Error(err))
		return false
	}
	if err := d.nodes.Flush(); err != nil {
		logger.Logger.Error("Failed to flush node store", zap.Error(err))
	}
	d.epochMissing.remove(node.Hash)
	logger.Logger.Debug("Stored late node of a committed epoch", zap.String("hash", node.Hash.Short()))
	return true
}
