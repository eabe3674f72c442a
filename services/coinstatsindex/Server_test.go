package coinstatsindex

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bsv-blockchain/coinstatsindex/model"
	"github.com/bsv-blockchain/coinstatsindex/pkg/multiset"
	"github.com/bsv-blockchain/coinstatsindex/services/blockchain"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv/memory"
	"github.com/bsv-blockchain/coinstatsindex/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *blockchain.Mock, *memory.Store) {
	t.Helper()

	store := memory.New()
	chain := blockchain.NewMock()

	s, err := New(context.Background(), ulogger.TestLogger{}, testSettings(multiset.AlgorithmMuHash, false), store, chain)
	require.NoError(t, err)

	return s, chain, store
}

func addCoinbaseBlock(t *testing.T, chain *blockchain.Mock, parent *model.Block, height uint32, value uint64) *model.Block {
	t.Helper()

	prevHash := &chainhash.Hash{}
	if parent != nil {
		prevHash = parent.Hash()
	}

	block := model.BuildTestBlock(prevHash, height, model.BuildTestCoinbaseTx(height, value, model.TestScript(0x51)))

	var undo *model.BlockUndo
	if height > 0 {
		undo = &model.BlockUndo{}
	}

	require.NoError(t, chain.AddBlock(block, undo))

	return block
}

func TestServerLifecycle(t *testing.T) {
	s, chain, _ := newTestServer(t)
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, s.State())

	addCoinbaseBlock(t, chain, nil, 0, 5_000_000_000)

	require.NoError(t, s.Init(ctx))
	assert.Equal(t, StateReady, s.State())

	status, _, err := s.Health(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, _, err = s.Health(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, StateStopped, s.State())
}

func TestServerStartRequiresInit(t *testing.T) {
	s, _, _ := newTestServer(t)

	readyCh := make(chan struct{})
	err := s.Start(context.Background(), readyCh)
	require.Error(t, err)
}

func TestServerSyncAndReorg(t *testing.T) {
	s, chain, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	genesis := addCoinbaseBlock(t, chain, nil, 0, 5_000_000_000)
	b1 := addCoinbaseBlock(t, chain, genesis, 1, 5_000_000_000)
	b2 := addCoinbaseBlock(t, chain, b1, 2, 5_000_000_000)

	require.NoError(t, s.Init(ctx))

	readyCh := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx, readyCh)
	}()

	<-readyCh

	waitForBest(t, s, b2)

	// a new block arrives over the subscription
	b3 := addCoinbaseBlock(t, chain, b2, 3, 5_000_000_000)
	waitForBest(t, s, b3)

	// a competing block at the same height takes over the tip
	b3prime := addCoinbaseBlock(t, chain, b2, 3, 4_000_000_000)
	waitForBest(t, s, b3prime)

	// the disconnected block still resolves to its pre-reorg snapshot
	snapshot, err := s.Index().Lookup(ctx, model.NewBlockIndex(b3))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), snapshot.TxOutputs)

	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServerQuarantineOnCorruptInit(t *testing.T) {
	store := memory.New()
	chain := blockchain.NewMock()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, musetKey, []byte("garbage")))

	s, err := New(ctx, ulogger.TestLogger{}, testSettings(multiset.AlgorithmMuHash, false), store, chain)
	require.NoError(t, err)

	require.Error(t, s.Init(ctx))

	status, msg, err := s.Health(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, msg, "quarantined")
}

func waitForBest(t *testing.T, s *Server, block *model.Block) {
	t.Helper()

	expected := *block.Hash()

	require.Eventually(t, func() bool {
		_, haveBest := s.Index().BestHeight()
		return haveBest && s.Index().BestHash() == expected
	}, 10*time.Second, 10*time.Millisecond, "index never reached block %s at height %d", block.Hash(), block.Height)
}
