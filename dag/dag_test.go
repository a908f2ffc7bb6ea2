package dag

import (
	"fmt"
	"math/rand"
	"testing"

	"dag-ledger/db"
	"dag-ledger/logger"
	"dag-ledger/models"
	"dag-ledger/repository"
	"dag-ledger/signer"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testStores struct {
	nodes  *repository.NodeRepository
	epochs *repository.EpochRepository
}

func newTestStores(t *testing.T) testStores {
	nodeStore, err := db.NewMemLevelDB()
	require.NoError(t, err)
	epochStore, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = nodeStore.Close()
		_ = epochStore.Close()
	})
	return testStores{
		nodes:  repository.NewNodeRepository(nodeStore),
		epochs: repository.NewEpochRepository(epochStore),
	}
}

func newTestDAGWith(t *testing.T, stores testStores, opts Options) *DAG {
	logger.Logger = zap.NewNop()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	d, err := New(stores.nodes, stores.epochs, opts)
	require.NoError(t, err)
	return d
}

func newTestDAG(t *testing.T) *DAG {
	return newTestDAGWith(t, newTestStores(t), Options{Params: DefaultParams()})
}

// relayNode builds a node the way a peer would send it
func relayNode(previous []models.Hash, oldest, weight uint64, contents string) models.DAGNode {
	n := models.DAGNode{
		Previous:              previous,
		Type:                  models.NodeData,
		Contents:              []byte(contents),
		OldestEpochReferenced: oldest,
		Weight:                weight,
	}
	n.Finalise()
	return n
}

// requireConsistentTips checks a pool node is a tip exactly when no pool node references it
func requireConsistentTips(t *testing.T, d *DAG) {
	d.mux.Lock()
	defer d.mux.Unlock()

	referenced := newHashSet()
	for _, node := range d.pool {
		for _, p := range node.Previous {
			referenced.insert(p)
		}
	}
	for h := range d.pool {
		_, isTip := d.tipByNode[h]
		require.Equal(t, !referenced.contains(h), isTip, "node %s", h.Short())
	}
	require.Equal(t, len(d.tips), len(d.tipByNode))
	for id, tip := range d.tips {
		require.Equal(t, id, tip.ID)
		require.Equal(t, id, d.tipByNode[tip.DAGNodeReference])
		_, inPool := d.pool[tip.DAGNodeReference]
		require.True(t, inPool, "tip %d refers outside the pool", id)
	}
	for h := range d.loose {
		_, inPool := d.pool[h]
		require.False(t, inPool)
	}
}

func tipHashes(d *DAG) []models.Hash {
	ret := make([]models.Hash, 0)
	for _, tip := range d.Tips() {
		ret = append(ret, tip.DAGNodeReference)
	}
	return models.SortHashes(ret)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	stores := newTestStores(t)
	_, err := New(stores.nodes, stores.epochs, Options{Params: Params{EpochValidityPeriod: 0, MaxTipsInEpoch: 1, ReferencesToBeTip: 2}})
	require.Error(t, err)
}

func TestGenesisReferences(t *testing.T) {
	d := newTestDAG(t)
	genesis := models.GenesisEpoch().Hash

	a, ok := d.AddTransaction([]byte("a"), models.NodeData)
	require.True(t, ok)
	b, ok := d.AddTransaction([]byte("b"), models.NodeData)
	require.True(t, ok)

	for _, h := range []models.Hash{a, b} {
		node, found := d.GetDAGNode(h)
		require.True(t, found)
		require.Equal(t, []models.Hash{genesis}, node.Previous)
		require.EqualValues(t, 0, node.Weight)
		require.EqualValues(t, 0, node.OldestEpochReferenced)
		require.True(t, signer.Verify(node.Identity, node.Hash.Bytes(), node.Signature))
	}
	require.Equal(t, models.SortHashes([]models.Hash{a, b}), tipHashes(d))
	requireConsistentTips(t, d)

	// pool reached ReferencesToBeTip, both tips get referenced
	c, ok := d.AddTransaction([]byte("c"), models.NodeData)
	require.True(t, ok)
	node, _ := d.GetDAGNode(c)
	require.ElementsMatch(t, []models.Hash{a, b}, node.Previous)
	require.EqualValues(t, 1, node.Weight)
	require.EqualValues(t, 0, node.OldestEpochReferenced)
	require.Equal(t, []models.Hash{c}, tipHashes(d))
	requireConsistentTips(t, d)
}

func TestFallbackToPoolNodes(t *testing.T) {
	d := newTestDAG(t)

	weights := make(map[models.Hash]uint64)
	for _, payload := range []string{"a", "b", "c"} {
		h, ok := d.AddTransaction([]byte(payload), models.NodeData)
		require.True(t, ok)
		node, _ := d.GetDAGNode(h)
		weights[h] = node.Weight
	}
	require.Len(t, d.Tips(), 1)

	// a single tip is not enough, references come from the whole pool
	h, ok := d.AddTransaction([]byte("d"), models.NodeData)
	require.True(t, ok)
	node, _ := d.GetDAGNode(h)
	require.Len(t, node.Previous, 2)
	require.NotEqual(t, node.Previous[0], node.Previous[1])

	maxWeight := uint64(0)
	for _, p := range node.Previous {
		w, inPool := weights[p]
		require.True(t, inPool)
		if w > maxWeight {
			maxWeight = w
		}
	}
	require.Equal(t, maxWeight+1, node.Weight)
	requireConsistentTips(t, d)
}

func TestAddDAGNodeRejections(t *testing.T) {
	d := newTestDAG(t)
	genesis := models.GenesisEpoch().Hash

	tampered := relayNode([]models.Hash{genesis}, 0, 0, "x")
	tampered.Contents = []byte("y")
	require.False(t, d.AddDAGNode(tampered))

	require.False(t, d.AddDAGNode(relayNode(nil, 0, 0, "no references")))

	badType := relayNode([]models.Hash{genesis}, 0, 0, "t")
	badType.Type = models.NodeType(42)
	badType.Finalise()
	require.False(t, d.AddDAGNode(badType))

	good := relayNode([]models.Hash{genesis}, 0, 0, "x")
	require.True(t, d.AddDAGNode(good))
	require.False(t, d.AddDAGNode(good))

	loose := relayNode([]models.Hash{{0xff}}, 0, 1, "loose")
	require.True(t, d.AddDAGNode(loose))
	require.True(t, d.IsLoose(loose.Hash))
	require.False(t, d.AddDAGNode(loose))

	require.Equal(t, 1, d.Stats().PoolSize)
	requireConsistentTips(t, d)
}

func TestLooseNodeHealing(t *testing.T) {
	d := newTestDAG(t)
	genesis := models.GenesisEpoch().Hash

	a := relayNode([]models.Hash{genesis}, 0, 0, "a")
	b := relayNode([]models.Hash{a.Hash}, 0, 1, "b")

	require.True(t, d.AddDAGNode(b))
	require.True(t, d.IsLoose(b.Hash))
	require.Equal(t, []models.Hash{a.Hash}, d.GetRecentlyMissing())
	require.Empty(t, d.Tips())

	require.True(t, d.AddDAGNode(a))
	require.False(t, d.IsLoose(b.Hash))
	require.Empty(t, d.GetRecentlyMissing())

	stats := d.Stats()
	require.Equal(t, 2, stats.PoolSize)
	require.Equal(t, 0, stats.LooseNodes)
	require.Equal(t, []models.Hash{b.Hash}, tipHashes(d))
	requireConsistentTips(t, d)
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	ret := make([][]int, 0)
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			perm := make([]int, 0, n)
			perm = append(perm, p[:i]...)
			perm = append(perm, n-1)
			perm = append(perm, p[i:]...)
			ret = append(ret, perm)
		}
	}
	return ret
}

func TestHealingIsOrderIndependent(t *testing.T) {
	genesis := models.GenesisEpoch().Hash
	a := relayNode([]models.Hash{genesis}, 0, 0, "a")
	b := relayNode([]models.Hash{a.Hash}, 0, 1, "b")
	c := relayNode([]models.Hash{b.Hash}, 0, 2, "c")
	e := relayNode([]models.Hash{genesis, a.Hash}, 0, 1, "e")
	f := relayNode([]models.Hash{b.Hash, c.Hash, e.Hash}, 0, 3, "f")
	nodes := []models.DAGNode{a, b, c, e, f}

	for _, perm := range permutations(len(nodes)) {
		t.Run(fmt.Sprint(perm), func(t *testing.T) {
			d := newTestDAG(t)
			for _, i := range perm {
				require.True(t, d.AddDAGNode(nodes[i]))
			}
			stats := d.Stats()
			require.Equal(t, len(nodes), stats.PoolSize)
			require.Equal(t, 0, stats.LooseNodes)
			require.Empty(t, d.GetRecentlyMissing())
			require.Equal(t, []models.Hash{f.Hash}, tipHashes(d))
			requireConsistentTips(t, d)
			require.Len(t, d.GetRecentlyAdded(), len(nodes))
		})
	}
}

func TestGetRecentlyAddedDrains(t *testing.T) {
	d := newTestDAG(t)

	a, _ := d.AddTransaction([]byte("a"), models.NodeData)
	b, _ := d.AddArbitrary([]byte("b"))

	added := d.GetRecentlyAdded()
	require.Len(t, added, 2)
	require.Equal(t, a, added[0].Hash)
	require.Equal(t, b, added[1].Hash)
	require.Equal(t, models.NodeArbitrary, added[1].Type)
	require.Empty(t, d.GetRecentlyAdded())
}

func TestGetWork(t *testing.T) {
	d := newTestDAG(t)

	digest := models.Hash{1, 2, 3}
	h, ok := d.AddWork(models.Work{ContractDigest: digest, BlockNumber: 4, Nonce: 7, Score: 3})
	require.True(t, ok)

	work, err := d.GetWork(h)
	require.NoError(t, err)
	require.Equal(t, digest, work.ContractDigest)
	require.Equal(t, d.signer.Identity(), work.Miner)
	require.EqualValues(t, 4, work.BlockNumber)
	require.EqualValues(t, 7, work.Nonce)
	require.EqualValues(t, 3, work.Score)

	data, _ := d.AddTransaction([]byte("data"), models.NodeData)
	_, err = d.GetWork(data)
	require.ErrorIs(t, err, ErrNotWork)

	_, err = d.GetWork(models.Hash{9})
	require.ErrorIs(t, err, ErrNotFound)
}

func metricValue(t *testing.T, m prometheus.Metric) float64 {
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := newTestDAGWith(t, newTestStores(t), Options{Params: DefaultParams(), Registry: reg})
	genesis := models.GenesisEpoch().Hash

	_, _ = d.AddTransaction([]byte("a"), models.NodeData)
	n := relayNode([]models.Hash{genesis}, 0, 0, "b")
	require.True(t, d.AddDAGNode(n))
	require.False(t, d.AddDAGNode(n))

	require.EqualValues(t, 2, metricValue(t, d.metrics.admitted))
	require.EqualValues(t, 1, metricValue(t, d.metrics.rejected))
	require.EqualValues(t, 2, metricValue(t, d.metrics.poolSize))

	_, err := d.ProduceEpoch()
	require.NoError(t, err)
	require.EqualValues(t, 1, metricValue(t, d.metrics.epochs))
	require.EqualValues(t, 1, metricValue(t, d.metrics.currentEpoch))
	require.EqualValues(t, 0, metricValue(t, d.metrics.poolSize))
}
