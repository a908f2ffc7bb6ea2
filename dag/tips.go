package dag

import (
	"sort"

	"dag-ledger/models"
)

func (d *DAG) newTipNoLock(node *models.DAGNode) {
	if _, already := d.tipByNode[node.Hash]; already {
		return
	}
	d.nextTipID++
	tip := &models.DAGTip{
		ID:                    d.nextTipID,
		DAGNodeReference:      node.Hash,
		OldestEpochReferenced: node.OldestEpochReferenced,
		Weight:                node.Weight,
	}
	d.tips[tip.ID] = tip
	d.tipByNode[node.Hash] = tip.ID
}

func (d *DAG) removeTipNoLock(nodeHash models.Hash) {
	id, ok := d.tipByNode[nodeHash]
	if !ok {
		return
	}
	delete(d.tips, id)
	delete(d.tipByNode, nodeHash)
}

// sortedTipsNoLock returns the tips in creation order
func (d *DAG) sortedTipsNoLock() []*models.DAGTip {
	ret := make([]*models.DAGTip, 0, len(d.tips))
	for _, tip := range d.tips {
		ret = append(ret, tip)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID < ret[j].ID
	})
	return ret
}

// pickNoLock chooses k distinct indices out of n uniformly
func (d *DAG) pickNoLock(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + d.rnd.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// setReferencesNoLock assigns previous, weight and oldest epoch referenced to a
// locally produced node. The chosen tips leave the tip index when the node is
// admitted.
func (d *DAG) setReferencesNoLock(node *models.DAGNode) {
	threshold := d.params.ReferencesToBeTip

	if len(d.pool) < threshold {
		// young graph, reference the epoch
		node.Previous = []models.Hash{d.current.epoch.Hash}
		node.OldestEpochReferenced = d.mostRecentEpoch
		node.Weight = 0
		return
	}

	type parent struct {
		hash   models.Hash
		oldest uint64
		weight uint64
	}
	parents := make([]parent, 0, threshold)

	if len(d.tips) >= threshold {
		tips := d.sortedTipsNoLock()
		for _, i := range d.pickNoLock(len(tips), threshold) {
			parents = append(parents, parent{
				hash:   tips[i].DAGNodeReference,
				oldest: tips[i].OldestEpochReferenced,
				weight: tips[i].Weight,
			})
		}
	} else {
		// not enough tips, any pool nodes keep the graph connected
		candidates := make(hashSet, len(d.pool))
		for h := range d.pool {
			candidates.insert(h)
		}
		sorted := candidates.sorted()
		for _, i := range d.pickNoLock(len(sorted), threshold) {
			n := d.pool[sorted[i]]
			parents = append(parents, parent{hash: n.Hash, oldest: n.OldestEpochReferenced, weight: n.Weight})
		}
	}

	node.Previous = make([]models.Hash, 0, len(parents))
	node.OldestEpochReferenced = parents[0].oldest
	node.Weight = 0
	for _, p := range parents {
		node.Previous = append(node.Previous, p.hash)
		if p.oldest < node.OldestEpochReferenced {
			node.OldestEpochReferenced = p.oldest
		}
		if p.weight+1 > node.Weight {
			node.Weight = p.weight + 1
		}
	}
}
