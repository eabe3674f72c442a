// Package coinstatsindex maintains a rolling homomorphic digest over the
// UTXO set together with running aggregate statistics, keyed by every block
// the indexer has processed. Lookups by block are O(1) against the backing
// store and survive chain reorganisations through dual keying by height and
// by block hash.
package coinstatsindex

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/model"
	"github.com/bsv-blockchain/coinstatsindex/pkg/multiset"
	"github.com/bsv-blockchain/coinstatsindex/services/blockchain"
	"github.com/bsv-blockchain/coinstatsindex/settings"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv"
	"github.com/bsv-blockchain/coinstatsindex/ulogger"
	"github.com/bsv-blockchain/coinstatsindex/util"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// aggregates are the running counters that accompany the digest. They are
// copied wholesale before a block is folded so that a failed batch write
// leaves the committed state untouched.
type aggregates struct {
	txOutputs   uint64
	bogoSize    uint64
	totalAmount int64
	diskSize    uint64

	unclaimedRewards int64
	opReturnTotal    int64
	bigScriptTotal   int64
}

// Index is the single-writer indexer core. The harness serialises Init,
// ApplyBlock and Rewind; Lookup reads committed store state and may run
// concurrently with them.
type Index struct {
	logger   ulogger.Logger
	settings *settings.Settings
	store    kv.Store
	chain    blockchain.ClientI

	// mu guards the committed state below. Writes are serialised by the
	// harness; the lock exists so getters may run concurrently with them.
	mu sync.RWMutex

	muset multiset.Digest
	agg   aggregates

	bestHash   chainhash.Hash
	bestHeight uint32
	haveBest   bool

	interrupted atomic.Bool
}

func NewIndex(logger ulogger.Logger, tSettings *settings.Settings, store kv.Store, chain blockchain.ClientI) (*Index, error) {
	muset, err := multiset.New(tSettings.CoinStats.Algorithm)
	if err != nil {
		return nil, err
	}

	initPrometheusMetrics()

	return &Index{
		logger:   logger,
		settings: tSettings,
		store:    store,
		chain:    chain,
		muset:    muset,
	}, nil
}

// Interrupt asks a running Rewind to abort between heights. Aborted
// operations discard all pending writes.
func (idx *Index) Interrupt() {
	idx.interrupted.Store(true)
}

// BestHeight returns the height the committed state corresponds to, and
// whether any block has been applied yet.
func (idx *Index) BestHeight() (uint32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.bestHeight, idx.haveBest
}

// BestHash returns the block hash the committed state corresponds to.
func (idx *Index) BestHash() chainhash.Hash {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.bestHash
}

// Init loads the live digest from the store. A truly missing key starts a
// fresh index; a key that exists but cannot be read means the index is
// corrupted and must not be silently wiped - conflating the two would turn
// a transient read failure into data loss.
func (idx *Index) Init(ctx context.Context) error {
	b, err := idx.store.Get(ctx, musetKey)
	if err != nil {
		exists, existsErr := idx.store.Exists(ctx, musetKey)
		if existsErr != nil {
			return errors.NewCorruptError("cannot read live digest and cannot verify key existence", errors.Join(err, existsErr))
		}

		if exists {
			return errors.NewCorruptError("live digest key exists but cannot be read; index may be corrupted", err)
		}

		if !errors.Is(err, errors.ErrNotFound) {
			return errors.NewStorageError("failed to read live digest", err)
		}

		// Key is truly missing: fresh index.
		idx.mu.Lock()
		idx.muset = idx.muset.Empty()
		idx.agg = aggregates{}
		idx.haveBest = false
		idx.mu.Unlock()

		idx.logger.Infof("no existing state, starting fresh %s index", idx.muset.Algorithm())

		return nil
	}

	muset := idx.muset.Empty()
	if err = muset.SetBytes(b); err != nil {
		return errors.NewCorruptError("live digest is unreadable", err)
	}

	if err = idx.restoreAggregates(ctx, muset); err != nil {
		return err
	}

	return nil
}

// restoreAggregates finds the height record whose digest tag matches the
// live digest and adopts its snapshot. After a clean shutdown that is the
// best height; after a rewind it is the new tip, since records above it
// belong to the abandoned branch and carry different tags.
func (idx *Index) restoreAggregates(ctx context.Context, muset multiset.Digest) error {
	tag, err := muset.Finalize()
	if err != nil {
		return err
	}

	it, err := idx.store.Iterate(ctx, []byte{dbPrefixHeight})
	if err != nil {
		return errors.NewStorageError("failed to iterate height records", err)
	}
	defer it.Release()

	var (
		bestHash     *chainhash.Hash
		bestHeight   uint32
		bestSnapshot *Snapshot
	)

	for it.Next() {
		height, err := heightFromKey(it.Key())
		if err != nil {
			return err
		}

		blockHash, snapshot, err := decodeHeightRecord(it.Value())
		if err != nil {
			return err
		}

		// Iteration is ascending, so the highest matching record wins.
		if snapshot.DigestTag == tag {
			bestHash = blockHash
			bestHeight = height
			bestSnapshot = snapshot
		}
	}

	if err = it.Err(); err != nil {
		return err
	}

	if bestSnapshot == nil {
		return errors.NewCorruptError("live digest matches no height record")
	}

	idx.mu.Lock()
	idx.muset = muset
	idx.adoptSnapshot(bestHash, bestHeight, bestSnapshot)
	idx.mu.Unlock()

	idx.logger.Infof("restored %s index at height %d, %d outputs", muset.Algorithm(), bestHeight, bestSnapshot.TxOutputs)

	return nil
}

// adoptSnapshot replaces the aggregates and best pointer; callers hold the
// write lock.
func (idx *Index) adoptSnapshot(blockHash *chainhash.Hash, height uint32, snapshot *Snapshot) {
	idx.agg = aggregates{
		txOutputs:        snapshot.TxOutputs,
		bogoSize:         snapshot.BogoSize,
		totalAmount:      snapshot.TotalAmount,
		diskSize:         snapshot.DiskSize,
		unclaimedRewards: snapshot.UnclaimedRewards,
		opReturnTotal:    snapshot.OpReturnTotal,
		bigScriptTotal:   snapshot.BigScriptTotal,
	}
	idx.bestHash = *blockHash
	idx.bestHeight = height
	idx.haveBest = true
}

// checkParent verifies that the stored record at height-1 belongs to the
// block's declared parent. A mismatch means the index followed a different
// chain than the caller and can only be wiped and rebuilt.
func (idx *Index) checkParent(ctx context.Context, height uint32, prevHash *chainhash.Hash) error {
	v, err := idx.store.Get(ctx, heightKey(height-1))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.NewInvariantError("no snapshot at parent height %d", height-1)
		}

		return errors.NewStorageError("failed to read snapshot at parent height %d", height-1, err)
	}

	storedHash, _, err := decodeHeightRecord(v)
	if err != nil {
		return err
	}

	if !storedHash.IsEqual(prevHash) {
		return errors.NewBlockParentMismatchError("snapshot at height %d belongs to block %s, expected %s", height-1, storedHash, prevHash)
	}

	return nil
}

// ApplyBlock folds a block into the digest and writes the snapshot at its
// height together with the live digest in one atomic batch. On any error
// the committed state is unchanged.
func (idx *Index) ApplyBlock(ctx context.Context, block *model.Block, undo *model.BlockUndo) error {
	start := time.Now()

	if err := block.CheckUndo(undo); err != nil {
		return err
	}

	if block.Height > 0 {
		if err := idx.checkParent(ctx, block.Height, block.Header.HashPrevBlock); err != nil {
			return err
		}
	}

	muset := idx.muset.Clone()
	agg := idx.agg

	if err := idx.foldBlock(muset, &agg, block, undo, false); err != nil {
		return err
	}

	diskSize, err := idx.store.EstimateSize(ctx)
	if err != nil {
		return errors.NewStorageError("failed to estimate store size", err)
	}

	agg.diskSize = diskSize

	snapshot, err := idx.buildSnapshot(muset, &agg)
	if err != nil {
		return err
	}

	musetBytes, err := muset.Bytes()
	if err != nil {
		return err
	}

	blockHash := block.Hash()

	err = idx.store.WriteBatch(ctx, []kv.BatchOp{
		{Key: heightKey(block.Height), Value: encodeHeightRecord(blockHash, snapshot)},
		{Key: musetKey, Value: musetBytes},
	})
	if err != nil {
		return errors.NewStorageError("failed to write snapshot batch for block %s", blockHash, err)
	}

	idx.mu.Lock()
	idx.muset = muset
	idx.agg = agg
	idx.bestHash = *blockHash
	idx.bestHeight = block.Height
	idx.haveBest = true
	idx.mu.Unlock()

	prometheusIndexApply.Observe(float64(time.Since(start).Microseconds()) / 1000)
	prometheusIndexBestHeight.Set(float64(block.Height))
	prometheusIndexTxOutputs.Set(float64(agg.txOutputs))

	return nil
}

// foldBlock walks the block's created outputs and spent inputs and moves
// the digest and counters forward, or backward when reverse is set. Spent
// coins accumulate into a scratch digest that is split off (or combined
// back) in a single group operation.
func (idx *Index) foldBlock(muset multiset.Digest, agg *aggregates, block *model.Block, undo *model.BlockUndo, reverse bool) error {
	var (
		totalIn    uint64
		totalOut   uint64
		spentCount int
		scratch    = muset.Empty()
		seenTxids  = make(map[chainhash.Hash]struct{}, len(block.Txs))
	)

	extended := idx.settings.CoinStats.ExtendedSnapshot
	duplicateCoinbase := model.IsDuplicateCoinbaseHeight(block.Height, block.Hash(), idx.settings.ChainCfgParams)

	for i, tx := range block.Txs {
		txid := tx.TxIDChainHash()
		coinbase := i == 0

		_, seen := seenTxids[*txid]
		seenTxids[*txid] = struct{}{}

		// Outputs of a duplicate coinbase, or of a txid already seen in this
		// block, are already represented in the set and are skipped.
		skipOutputs := seen || (coinbase && duplicateCoinbase)

		for j, output := range tx.Outputs {
			coin := model.NewCoinFromOutput(output, block.Height, coinbase)
			totalOut += coin.Value

			if skipOutputs {
				continue
			}

			switch coin.Classify() {
			case model.CoinOpReturn:
				if extended {
					agg.opReturnTotal = addSigned(agg.opReturnTotal, int64(coin.Value), reverse)
				}

				continue
			case model.CoinBigScript:
				if extended {
					agg.bigScriptTotal = addSigned(agg.bigScriptTotal, int64(coin.Value), reverse)
				}

				continue
			}

			vout, err := safeconversion.IntToUint32(j)
			if err != nil {
				return errors.NewBlockInvalidError("output index %d out of range", j, err)
			}

			element := coin.ElementHash(txid, vout)

			if reverse {
				muset.Remove(element)
				agg.txOutputs--
				agg.bogoSize -= coin.BogoSize()
				agg.totalAmount -= int64(coin.Value)
			} else {
				muset.Insert(element)
				agg.txOutputs++
				agg.bogoSize += coin.BogoSize()
				agg.totalAmount += int64(coin.Value)
			}
		}

		// The coinbase has no undo entry since it spends no former output.
		if i == 0 {
			continue
		}

		txUndo := undo.TxUndos[i-1]

		for k, input := range tx.Inputs {
			coin := txUndo.SpentCoins[k]
			totalIn += coin.Value

			if !coin.IsSpendable() {
				continue
			}

			scratch.Insert(coin.ElementHash(input.PreviousTxIDChainHash(), input.PreviousTxOutIndex))
			spentCount++

			if reverse {
				agg.txOutputs++
				agg.bogoSize += coin.BogoSize()
				agg.totalAmount += int64(coin.Value)
			} else {
				agg.txOutputs--
				agg.bogoSize -= coin.BogoSize()
				agg.totalAmount -= int64(coin.Value)
			}
		}
	}

	if spentCount > 0 {
		// One group operation for all spent coins; for muhash this is what
		// keeps the modular inversions to one per block.
		if reverse {
			if err := muset.Combine(scratch); err != nil {
				return err
			}
		} else {
			if err := muset.Split(scratch); err != nil {
				return err
			}
		}
	}

	if extended {
		subsidy := util.GetBlockSubsidyForHeight(block.Height, idx.settings.ChainCfgParams)

		unclaimed := int64(totalIn) + int64(subsidy) - int64(totalOut)
		if unclaimed > 0 {
			agg.unclaimedRewards = addSigned(agg.unclaimedRewards, unclaimed, reverse)
		}
	}

	return nil
}

func addSigned(current, delta int64, reverse bool) int64 {
	if reverse {
		return current - delta
	}

	return current + delta
}

func (idx *Index) buildSnapshot(muset multiset.Digest, agg *aggregates) (*Snapshot, error) {
	tag, err := muset.Finalize()
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		DigestTag:        tag,
		TxOutputs:        agg.txOutputs,
		BogoSize:         agg.bogoSize,
		TotalAmount:      agg.totalAmount,
		DiskSize:         agg.diskSize,
		Extended:         idx.settings.CoinStats.ExtendedSnapshot,
		UnclaimedRewards: agg.unclaimedRewards,
		OpReturnTotal:    agg.opReturnTotal,
		BigScriptTotal:   agg.bigScriptTotal,
	}, nil
}

// Rewind walks the digest backward from currentTip down to (but not
// including) newTip, copies every evicted height record into the hash lane
// so lookups by block hash keep working, and commits the copies together
// with the rewound digest in one atomic batch. Aggregates are restored from
// the snapshot at newTip rather than recomputed; the snapshot is the source
// of truth.
func (idx *Index) Rewind(ctx context.Context, currentTip, newTip *model.BlockIndex) error {
	start := time.Now()

	if currentTip.Height <= newTip.Height {
		return errors.NewInvariantError("current tip %d is not above new tip %d", currentTip.Height, newTip.Height)
	}

	ancestor, err := idx.chain.Ancestor(ctx, currentTip, newTip.Height)
	if err != nil {
		return err
	}

	if !ancestor.Hash.IsEqual(&newTip.Hash) {
		return errors.NewInvariantError("current tip %s does not descend from new tip %s", currentTip.Hash, newTip.Hash)
	}

	muset := idx.muset.Clone()
	agg := idx.agg

	iter := currentTip

	for !iter.Hash.IsEqual(&newTip.Hash) {
		if idx.interrupted.Load() {
			return errors.NewContextCanceledError("rewind interrupted at height %d", iter.Height)
		}

		block, err := idx.chain.GetBlock(ctx, &iter.Hash)
		if err != nil {
			return err
		}

		undo, err := idx.chain.GetBlockUndo(ctx, &iter.Hash)
		if err != nil {
			return err
		}

		if err = idx.reverseBlock(ctx, muset, &agg, block, undo); err != nil {
			return err
		}

		if iter, err = idx.chain.Prev(ctx, iter); err != nil {
			return err
		}
	}

	// Copy the evicted height records into the hash lane before the height
	// lane is overwritten by the blocks replacing them.
	batch, err := idx.copyHeightToHash(ctx, newTip.Height, currentTip.Height)
	if err != nil {
		return err
	}

	// The snapshot at the new tip is adopted wholesale; the rewound digest
	// must agree with it.
	v, err := idx.store.Get(ctx, heightKey(newTip.Height))
	if err != nil {
		return errors.NewStorageError("failed to read snapshot at new tip height %d", newTip.Height, err)
	}

	storedHash, snapshot, err := decodeHeightRecord(v)
	if err != nil {
		return err
	}

	if !storedHash.IsEqual(&newTip.Hash) {
		return errors.NewCorruptError("snapshot at height %d belongs to block %s, expected new tip %s", newTip.Height, storedHash, newTip.Hash)
	}

	tag, err := muset.Finalize()
	if err != nil {
		return err
	}

	if tag != snapshot.DigestTag {
		return errors.NewCorruptError("rewound digest does not match snapshot at height %d", newTip.Height)
	}

	musetBytes, err := muset.Bytes()
	if err != nil {
		return err
	}

	batch = append(batch, kv.BatchOp{Key: musetKey, Value: musetBytes})

	if err = idx.store.WriteBatch(ctx, batch); err != nil {
		return errors.NewStorageError("failed to write rewind batch", err)
	}

	idx.mu.Lock()
	idx.muset = muset
	idx.adoptSnapshot(storedHash, newTip.Height, snapshot)
	idx.mu.Unlock()

	prometheusIndexRewind.Observe(float64(time.Since(start).Microseconds()) / 1000)
	prometheusIndexBestHeight.Set(float64(newTip.Height))
	prometheusIndexTxOutputs.Set(float64(idx.agg.txOutputs))

	return nil
}

// reverseBlock is the exact inverse of the apply fold, including the parent
// linkage check against the height lane, which still holds the abandoned
// branch's records while rewinding.
func (idx *Index) reverseBlock(ctx context.Context, muset multiset.Digest, agg *aggregates, block *model.Block, undo *model.BlockUndo) error {
	if err := block.CheckUndo(undo); err != nil {
		return err
	}

	if block.Height > 0 {
		if err := idx.checkParent(ctx, block.Height, block.Header.HashPrevBlock); err != nil {
			return err
		}
	}

	return idx.foldBlock(muset, agg, block, undo, true)
}

// copyHeightToHash collects hash-lane copies for every height record in
// (startHeight, stopHeight]. The snapshot bytes are copied verbatim so the
// hash lane preserves the exact value the height lane held.
func (idx *Index) copyHeightToHash(ctx context.Context, startHeight, stopHeight uint32) ([]kv.BatchOp, error) {
	it, err := idx.store.Iterate(ctx, []byte{dbPrefixHeight})
	if err != nil {
		return nil, errors.NewStorageError("failed to iterate height records", err)
	}
	defer it.Release()

	batch := make([]kv.BatchOp, 0, stopHeight-startHeight)

	for it.Next() {
		height, err := heightFromKey(it.Key())
		if err != nil {
			return nil, err
		}

		if height <= startHeight || height > stopHeight {
			continue
		}

		v := it.Value()
		if len(v) < 32 {
			return nil, errors.NewCorruptError("height record at %d too short: %d bytes", height, len(v))
		}

		blockHash, err := chainhash.NewHash(v[:32])
		if err != nil {
			return nil, errors.NewCorruptError("invalid block hash in height record at %d", height, err)
		}

		snapshotBytes := make([]byte, len(v)-32)
		copy(snapshotBytes, v[32:])

		batch = append(batch, kv.BatchOp{Key: hashKey(blockHash), Value: snapshotBytes})
	}

	if err = it.Err(); err != nil {
		return nil, err
	}

	expected := int(stopHeight - startHeight)
	if len(batch) != expected {
		return nil, errors.NewCorruptError("expected %d height records in (%d, %d], found %d", expected, startHeight, stopHeight, len(batch))
	}

	return batch, nil
}

// Lookup returns the snapshot for a block: the height lane when the block
// is on the active chain, the hash lane when it was disconnected by a
// reorg, ERR_NOT_FOUND when neither lane has it.
func (idx *Index) Lookup(ctx context.Context, index *model.BlockIndex) (*Snapshot, error) {
	start := time.Now()
	defer func() {
		prometheusIndexLookup.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	v, err := idx.store.Get(ctx, heightKey(index.Height))
	if err == nil {
		storedHash, snapshot, decodeErr := decodeHeightRecord(v)
		if decodeErr != nil {
			return nil, decodeErr
		}

		if storedHash.IsEqual(&index.Hash) {
			return snapshot, nil
		}
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.NewStorageError("failed to read snapshot at height %d", index.Height, err)
	}

	v, err = idx.store.Get(ctx, hashKey(&index.Hash))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFoundError("no snapshot for block %s", index.Hash)
		}

		return nil, errors.NewStorageError("failed to read snapshot for block %s", index.Hash, err)
	}

	return NewSnapshotFromBytes(v)
}
