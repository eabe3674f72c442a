package blockchain

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

type blockEntry struct {
	block *model.Block
	undo  *model.BlockUndo
}

// Mock is an in-memory ClientI holding a block tree with one active tip.
// Forks are supported: AddBlock extends whatever parent the header names,
// and SetTip switches the active chain, which is how tests drive reorgs.
type Mock struct {
	mu     sync.RWMutex
	blocks map[chainhash.Hash]*blockEntry
	tip    *chainhash.Hash
	subs   []chan *model.BlockIndex
}

func NewMock() *Mock {
	return &Mock{
		blocks: make(map[chainhash.Hash]*blockEntry),
	}
}

// AddBlock registers a block with its undo data and makes it the active
// tip. The parent must already be registered unless the block is at height
// zero.
func (m *Mock) AddBlock(block *model.Block, undo *model.BlockUndo) error {
	m.mu.Lock()

	hash := *block.Hash()

	if block.Height > 0 {
		if _, ok := m.blocks[*block.Header.HashPrevBlock]; !ok {
			m.mu.Unlock()
			return errors.NewBlockNotFoundError("parent %s not registered", block.Header.HashPrevBlock)
		}
	}

	m.blocks[hash] = &blockEntry{block: block, undo: undo}
	m.tip = &hash

	index := model.NewBlockIndex(block)
	subs := make([]chan *model.BlockIndex, len(m.subs))
	copy(subs, m.subs)

	m.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- index:
		default:
		}
	}

	return nil
}

// SetTip switches the active chain tip to an already registered block.
func (m *Mock) SetTip(blockHash *chainhash.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[*blockHash]; !ok {
		return errors.NewBlockNotFoundError("block %s not registered", blockHash)
	}

	h := *blockHash
	m.tip = &h

	return nil
}

func (m *Mock) GetBlock(_ context.Context, blockHash *chainhash.Hash) (*model.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.blocks[*blockHash]
	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", blockHash)
	}

	return entry.block, nil
}

func (m *Mock) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, err := m.activeEntryAtHeight(height)
	if err != nil {
		return nil, err
	}

	return entry.block, nil
}

func (m *Mock) GetBlockUndo(_ context.Context, blockHash *chainhash.Hash) (*model.BlockUndo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.blocks[*blockHash]
	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", blockHash)
	}

	return entry.undo, nil
}

func (m *Mock) GetBlockIndex(_ context.Context, blockHash *chainhash.Hash) (*model.BlockIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.blocks[*blockHash]
	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", blockHash)
	}

	return model.NewBlockIndex(entry.block), nil
}

func (m *Mock) GetBestBlockIndex(_ context.Context) (*model.BlockIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tip == nil {
		return nil, errors.NewBlockNotFoundError("chain is empty")
	}

	return model.NewBlockIndex(m.blocks[*m.tip].block), nil
}

func (m *Mock) Ancestor(_ context.Context, index *model.BlockIndex, height uint32) (*model.BlockIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if height > index.Height {
		return nil, errors.NewInvariantError("ancestor height %d above block height %d", height, index.Height)
	}

	current, ok := m.blocks[index.Hash]
	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", index.Hash)
	}

	for current.block.Height > height {
		parent, ok := m.blocks[*current.block.Header.HashPrevBlock]
		if !ok {
			return nil, errors.NewBlockNotFoundError("parent %s not found", current.block.Header.HashPrevBlock)
		}

		current = parent
	}

	return model.NewBlockIndex(current.block), nil
}

func (m *Mock) Prev(ctx context.Context, index *model.BlockIndex) (*model.BlockIndex, error) {
	if index.Height == 0 {
		return nil, errors.NewBlockNotFoundError("genesis block has no parent")
	}

	return m.GetBlockIndex(ctx, &index.PrevHash)
}

func (m *Mock) Subscribe(ctx context.Context) (<-chan *model.BlockIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *model.BlockIndex, 16)
	m.subs = append(m.subs, ch)

	go func() {
		<-ctx.Done()

		m.mu.Lock()
		defer m.mu.Unlock()

		for i, sub := range m.subs {
			if sub == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				close(ch)

				break
			}
		}
	}()

	return ch, nil
}

func (m *Mock) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "OK", nil
}

// activeEntryAtHeight walks back from the tip; callers hold the lock.
func (m *Mock) activeEntryAtHeight(height uint32) (*blockEntry, error) {
	if m.tip == nil {
		return nil, errors.NewBlockNotFoundError("chain is empty")
	}

	current := m.blocks[*m.tip]
	if height > current.block.Height {
		return nil, errors.NewBlockNotFoundError("height %d above tip %d", height, current.block.Height)
	}

	for current.block.Height > height {
		parent, ok := m.blocks[*current.block.Header.HashPrevBlock]
		if !ok {
			return nil, errors.NewBlockNotFoundError("parent %s not found", current.block.Header.HashPrevBlock)
		}

		current = parent
	}

	return current, nil
}
