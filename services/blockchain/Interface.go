// Package blockchain defines the block source contract the coin stats
// index consumes: canonical blocks, their undo records, and navigation over
// the block index for reorg handling. The package also ships an in-memory
// implementation used by tests and local runs.
package blockchain

import (
	"context"

	"github.com/bsv-blockchain/coinstatsindex/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// ClientI supplies blocks, undo data and block-index navigation.
type ClientI interface {
	// GetBlock returns the block with the given hash.
	GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error)

	// GetBlockByHeight returns the block at the given height on the active
	// chain.
	GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error)

	// GetBlockUndo returns the undo record of the block: for every
	// non-coinbase transaction, the coins its inputs spent.
	GetBlockUndo(ctx context.Context, blockHash *chainhash.Hash) (*model.BlockUndo, error)

	// GetBlockIndex returns the index entry for a block hash, whether or not
	// the block is on the active chain.
	GetBlockIndex(ctx context.Context, blockHash *chainhash.Hash) (*model.BlockIndex, error)

	// GetBestBlockIndex returns the active chain tip.
	GetBestBlockIndex(ctx context.Context) (*model.BlockIndex, error)

	// Ancestor returns the ancestor of index at the given height.
	Ancestor(ctx context.Context, index *model.BlockIndex, height uint32) (*model.BlockIndex, error)

	// Prev returns the parent index entry, or ERR_BLOCK_NOT_FOUND for the
	// genesis block.
	Prev(ctx context.Context, index *model.BlockIndex) (*model.BlockIndex, error)

	// Subscribe returns a channel of new active tips. The channel is closed
	// when ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan *model.BlockIndex, error)

	Health(ctx context.Context, checkLiveness bool) (int, string, error)
}
