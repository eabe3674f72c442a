package model

import (
	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Block is a totally ordered list of transactions under a header.
// Transaction 0 is the coinbase.
type Block struct {
	Header *BlockHeader
	Height uint32
	Txs    []*bt.Tx
}

func (b *Block) Hash() *chainhash.Hash {
	return b.Header.Hash()
}

func (b *Block) CoinbaseTx() *bt.Tx {
	if len(b.Txs) == 0 {
		return nil
	}

	return b.Txs[0]
}

// TxUndo lists the coins a single transaction's inputs spent, in input
// order.
type TxUndo struct {
	SpentCoins []*Coin
}

// BlockUndo carries one TxUndo per non-coinbase transaction: TxUndos[i]
// belongs to Txs[i+1].
type BlockUndo struct {
	TxUndos []*TxUndo
}

// CheckUndo validates the parallel-list invariant between a block and its
// undo data, including the per-transaction input counts.
func (b *Block) CheckUndo(undo *BlockUndo) error {
	if b.Height == 0 {
		if undo != nil && len(undo.TxUndos) != 0 {
			return errors.NewBlockInvalidError("genesis block cannot have undo data")
		}

		if len(b.Txs) > 1 {
			return errors.NewBlockInvalidError("genesis block cannot spend outputs")
		}

		return nil
	}

	if undo == nil {
		return errors.NewBlockInvalidError("block %s has no undo data", b.Hash())
	}

	if len(b.Txs)-1 != len(undo.TxUndos) {
		return errors.NewBlockInvalidError("block %s has %d transactions but %d undo entries", b.Hash(), len(b.Txs), len(undo.TxUndos))
	}

	for i, txUndo := range undo.TxUndos {
		tx := b.Txs[i+1]
		if len(tx.Inputs) != len(txUndo.SpentCoins) {
			return errors.NewBlockInvalidError("tx %s has %d inputs but %d undo coins", tx.TxIDChainHash(), len(tx.Inputs), len(txUndo.SpentCoins))
		}
	}

	return nil
}

// BlockIndex is the coordinate of a block in the chain the block source
// serves: its hash, its parent's hash and its height.
type BlockIndex struct {
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
	Height   uint32
}

func NewBlockIndex(block *Block) *BlockIndex {
	return &BlockIndex{
		Hash:     *block.Hash(),
		PrevHash: *block.Header.HashPrevBlock,
		Height:   block.Height,
	}
}
