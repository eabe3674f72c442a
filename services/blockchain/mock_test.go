package blockchain

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addBlock(t *testing.T, m *Mock, parent *model.Block, height uint32) *model.Block {
	t.Helper()

	prevHash := &chainhash.Hash{}
	if parent != nil {
		prevHash = parent.Hash()
	}

	block := model.BuildTestBlock(prevHash, height, model.BuildTestCoinbaseTx(height, 5_000_000_000, model.TestScript(0x51)))

	var undo *model.BlockUndo
	if height > 0 {
		undo = &model.BlockUndo{}
	}

	require.NoError(t, m.AddBlock(block, undo))

	return block
}

func TestMockChainNavigation(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	_, err := m.GetBestBlockIndex(ctx)
	require.Error(t, err)

	genesis := addBlock(t, m, nil, 0)
	b1 := addBlock(t, m, genesis, 1)
	b2 := addBlock(t, m, b1, 2)

	tip, err := m.GetBestBlockIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, *b2.Hash(), tip.Hash)

	block, err := m.GetBlockByHeight(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, *b1.Hash(), *block.Hash())

	ancestor, err := m.Ancestor(ctx, tip, 0)
	require.NoError(t, err)
	assert.Equal(t, *genesis.Hash(), ancestor.Hash)

	prev, err := m.Prev(ctx, tip)
	require.NoError(t, err)
	assert.Equal(t, *b1.Hash(), prev.Hash)

	genesisIndex, err := m.GetBlockIndex(ctx, genesis.Hash())
	require.NoError(t, err)

	_, err = m.Prev(ctx, genesisIndex)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
}

func TestMockChainForks(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	genesis := addBlock(t, m, nil, 0)
	b1 := addBlock(t, m, genesis, 1)

	// fork at height 1
	fork := model.BuildTestBlock(genesis.Hash(), 1, model.BuildTestCoinbaseTx(1, 4_000_000_000, model.TestScript(0x52)))
	require.NoError(t, m.AddBlock(fork, &model.BlockUndo{}))

	tip, err := m.GetBestBlockIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, *fork.Hash(), tip.Hash)

	// the other branch is still reachable by hash
	_, err = m.GetBlock(ctx, b1.Hash())
	require.NoError(t, err)

	require.NoError(t, m.SetTip(b1.Hash()))

	tip, err = m.GetBestBlockIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, *b1.Hash(), tip.Hash)
}

func TestMockChainSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMock()

	ch, err := m.Subscribe(ctx)
	require.NoError(t, err)

	genesis := addBlock(t, m, nil, 0)

	notification := <-ch
	assert.Equal(t, *genesis.Hash(), notification.Hash)
}

func TestMockChainUnknownParent(t *testing.T) {
	m := NewMock()

	unknown := chainhash.HashH([]byte("unknown"))
	block := model.BuildTestBlock(&unknown, 1, model.BuildTestCoinbaseTx(1, 1, model.TestScript(0x51)))

	require.Error(t, m.AddBlock(block, &model.BlockUndo{}))
}
