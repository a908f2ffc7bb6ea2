package dag

import (
	"math/rand"
	"sync"
	"time"

	"dag-ledger/logger"
	"dag-ledger/models"
	"dag-ledger/repository"
	"dag-ledger/signer"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Params are the consensus parameters of the DAG
type Params struct {
	// number of most recent epochs a node may reference
	EpochValidityPeriod uint64
	MaxTipsInEpoch      int
	ReferencesToBeTip   int
}

func DefaultParams() Params {
	return Params{
		EpochValidityPeriod: 2,
		MaxTipsInEpoch:      30,
		ReferencesToBeTip:   2,
	}
}

type Options struct {
	Params
	// recover HEAD and the retained window from the epoch store
	LoadOnStart bool
	// signs locally produced nodes. An ephemeral key is generated when nil
	Signer signer.Signer
	// source of randomness for reference selection
	Rand *rand.Rand
	// metrics are registered when not nil
	Registry *prometheus.Registry
}

type retainedEpoch struct {
	epoch   models.DAGEpoch
	members hashSet
}

// DAG is the local node pool plus the finalised epoch sequence. All state is
// guarded by mux. Methods with the NoLock suffix expect it to be held.
type DAG struct {
	mux     sync.Mutex
	params  Params
	nodes   repository.NodeRepositoryInterface
	epochs  repository.EpochRepositoryInterface
	signer  signer.Signer
	rnd     *rand.Rand
	metrics dagMetrics

	// live nodes not yet finalised by an epoch
	pool map[models.Hash]*models.DAGNode
	// parent hash -> pool nodes referencing it
	children map[models.Hash]hashSet

	tips      map[uint64]*models.DAGTip
	tipByNode map[models.Hash]uint64
	nextTipID uint64

	// nodes waiting on unknown references
	loose map[models.Hash]*models.DAGNode
	// missing hash -> hashes of loose nodes waiting on it
	looseWaiting map[models.Hash][]models.Hash
	// reported by epoch checks, not available locally
	epochMissing hashSet

	mostRecentEpoch uint64
	current         retainedEpoch
	// older retained epochs, oldest at the front. At most EpochValidityPeriod-1
	window *deque.Deque[retainedEpoch]

	recentlyAdded []models.DAGNode
}

func New(nodes repository.NodeRepositoryInterface, epochs repository.EpochRepositoryInterface, opts Options) (*DAG, error) {
	if opts.Params == (Params{}) {
		opts.Params = DefaultParams()
	}
	if opts.EpochValidityPeriod == 0 || opts.ReferencesToBeTip <= 0 || opts.MaxTipsInEpoch <= 0 {
		return nil, errors.Errorf("invalid DAG parameters %+v", opts.Params)
	}
	if opts.Signer == nil {
		s, err := signer.New()
		if err != nil {
			return nil, err
		}
		opts.Signer = s
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	d := &DAG{
		params:  opts.Params,
		nodes:   nodes,
		epochs:  epochs,
		signer:  opts.Signer,
		rnd:     opts.Rand,
		metrics: newMetrics(opts.Registry),
	}
	d.clearLiveNoLock()

	if opts.LoadOnStart {
		if err := d.loadNoLock(); err != nil {
			logger.Logger.Warn("Failed to recover DAG state, starting from genesis", zap.Error(err))
			if err := d.resetToGenesisNoLock(); err != nil {
				return nil, err
			}
		}
	} else if err := d.resetToGenesisNoLock(); err != nil {
		return nil, err
	}
	d.updateGaugesNoLock()

	logger.Logger.Info("DAG ready",
		zap.Uint64("epoch", d.mostRecentEpoch),
		zap.String("epoch_hash", d.current.epoch.Hash.Short()))
	return d, nil
}

func (d *DAG) clearLiveNoLock() {
	d.pool = make(map[models.Hash]*models.DAGNode)
	d.children = make(map[models.Hash]hashSet)
	d.tips = make(map[uint64]*models.DAGTip)
	d.tipByNode = make(map[models.Hash]uint64)
	d.loose = make(map[models.Hash]*models.DAGNode)
	d.looseWaiting = make(map[models.Hash][]models.Hash)
	d.epochMissing = newHashSet()
	d.window = new(deque.Deque[retainedEpoch])
	d.recentlyAdded = nil
}

// loadNoLock restores HEAD and the retained window. The live pool starts empty
func (d *DAG) loadNoLock() error {
	headHash, found, err := d.epochs.GetHead()
	if err != nil {
		return err
	}
	if !found {
		return errors.New("no HEAD in epoch store")
	}
	head, found, err := d.epochs.GetEpoch(headHash)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("HEAD epoch %s not in store", headHash.Short())
	}
	return d.rebuildWindowNoLock(head)
}

// rebuildWindowNoLock makes head the current epoch and loads its predecessors from the index
func (d *DAG) rebuildWindowNoLock(head *models.DAGEpoch) error {
	if !head.HashValid() {
		return errors.Errorf("epoch %d hash mismatch", head.BlockNumber)
	}
	window := new(deque.Deque[retainedEpoch])
	from := uint64(0)
	if head.BlockNumber+1 > d.params.EpochValidityPeriod {
		from = head.BlockNumber + 1 - d.params.EpochValidityPeriod
	}
	for n := from; n < head.BlockNumber; n++ {
		e, err := d.epochAtNoLock(n)
		if err != nil {
			return err
		}
		window.PushBack(retainedEpoch{epoch: *e, members: newHashSet(e.AllNodes...)})
	}
	d.window = window
	d.current = retainedEpoch{epoch: *head, members: newHashSet(head.AllNodes...)}
	d.mostRecentEpoch = head.BlockNumber
	return nil
}

func (d *DAG) epochAtNoLock(n uint64) (*models.DAGEpoch, error) {
	h, found, err := d.epochs.GetIndex(n)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("epoch %d missing from index", n)
	}
	e, found, err := d.epochs.GetEpoch(h)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("epoch %d (%s) missing from store", n, h.Short())
	}
	if e.BlockNumber != n {
		return nil, errors.Errorf("index entry %d points to epoch %d", n, e.BlockNumber)
	}
	return e, nil
}

// resetToGenesisNoLock clears the live state and the epoch index
func (d *DAG) resetToGenesisNoLock() error {
	last := d.mostRecentEpoch
	if headHash, found, err := d.epochs.GetHead(); err == nil && found {
		if head, found, err := d.epochs.GetEpoch(headHash); err == nil && found && head.BlockNumber > last {
			last = head.BlockNumber
		}
	}
	for n := last; n > 0; n-- {
		if err := d.epochs.EraseIndex(n); err != nil {
			return err
		}
	}
	d.clearLiveNoLock()

	genesis := models.GenesisEpoch()
	if err := d.epochs.PutEpoch(&genesis); err != nil {
		return err
	}
	if err := d.epochs.SetIndex(0, genesis.Hash); err != nil {
		return err
	}
	if err := d.epochs.SetHead(genesis.Hash); err != nil {
		return err
	}
	d.current = retainedEpoch{epoch: genesis, members: newHashSet()}
	d.mostRecentEpoch = 0
	return d.flushNoLock()
}

func (d *DAG) flushNoLock() error {
	if err := d.nodes.Flush(); err != nil {
		return errors.Wrap(err, "flushing node store")
	}
	if err := d.epochs.Flush(); err != nil {
		return errors.Wrap(err, "flushing epoch store")
	}
	return nil
}

// isStaleNoLock: the reference falls outside the retained window
func (d *DAG) isStaleNoLock(oldestEpochReferenced uint64) bool {
	return oldestEpochReferenced+d.params.EpochValidityPeriod <= d.mostRecentEpoch
}

// oldestRetainedNoLock is the block number of the oldest epoch kept in memory
func (d *DAG) oldestRetainedNoLock() uint64 {
	return d.current.epoch.BlockNumber - uint64(d.window.Len())
}

// retainedEpochNoLock finds a retained epoch by its hash
func (d *DAG) retainedEpochNoLock(h models.Hash) (*models.DAGEpoch, bool) {
	if d.current.epoch.Hash == h {
		return &d.current.epoch, true
	}
	for i := 0; i < d.window.Len(); i++ {
		if e := d.window.At(i); e.epoch.Hash == h {
			return &e.epoch, true
		}
	}
	return nil, false
}

// finalisedInWindowNoLock: h is a retained epoch or a node of one
func (d *DAG) finalisedInWindowNoLock(h models.Hash) bool {
	if d.current.epoch.Hash == h || d.current.members.contains(h) {
		return true
	}
	for i := 0; i < d.window.Len(); i++ {
		e := d.window.At(i)
		if e.epoch.Hash == h || e.members.contains(h) {
			return true
		}
	}
	return false
}

// knownNoLock: a reference to h resolves
func (d *DAG) knownNoLock(h models.Hash) bool {
	_, inPool := d.pool[h]
	return inPool || d.finalisedInWindowNoLock(h)
}

// finalisedNoLock also consults durable storage, beyond the retained window
func (d *DAG) finalisedNoLock(h models.Hash) (bool, error) {
	if d.finalisedInWindowNoLock(h) {
		return true, nil
	}
	if _, found, err := d.nodes.GetNode(h); err != nil || found {
		return found, err
	}
	_, found, err := d.epochs.GetEpoch(h)
	return found, err
}
