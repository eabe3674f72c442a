package model

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Test fixtures shared by tests across the repo.

// BuildTestCoinbaseTx returns a coinbase transaction paying value to the
// given locking script. The height is encoded into the unlocking script so
// coinbases at different heights get distinct txids.
func BuildTestCoinbaseTx(height uint32, value uint64, lockingScript *bscript.Script) *bt.Tx {
	tx := bt.NewTx()

	input := &bt.Input{
		PreviousTxOutIndex: 0xffffffff,
		SequenceNumber:     0xffffffff,
	}
	_ = input.PreviousTxIDAdd(&chainhash.Hash{})

	heightBytes := make([]byte, 5)
	heightBytes[0] = 0x04
	binary.LittleEndian.PutUint32(heightBytes[1:], height)
	input.UnlockingScript = bscript.NewFromBytes(heightBytes)

	tx.Inputs = append(tx.Inputs, input)
	tx.AddOutput(&bt.Output{Satoshis: value, LockingScript: lockingScript})

	return tx
}

// BuildTestSpendTx returns a transaction spending a single previous output
// into the given outputs.
func BuildTestSpendTx(prevTxID *chainhash.Hash, vout uint32, prevValue uint64, outputs ...*bt.Output) *bt.Tx {
	tx := bt.NewTx()

	input := &bt.Input{
		PreviousTxOutIndex: vout,
		PreviousTxSatoshis: prevValue,
		SequenceNumber:     0xffffffff,
	}
	_ = input.PreviousTxIDAdd(prevTxID)
	input.UnlockingScript = bscript.NewFromBytes([]byte{0x51})

	tx.Inputs = append(tx.Inputs, input)

	for _, output := range outputs {
		tx.AddOutput(output)
	}

	return tx
}

// BuildTestBlock assembles a block at the given height on top of prevHash.
// The merkle root is a stand-in derived from the first transaction, which
// is enough to give every test block a unique header hash.
func BuildTestBlock(prevHash *chainhash.Hash, height uint32, txs ...*bt.Tx) *Block {
	merkleRoot := txs[0].TxIDChainHash()

	header := &BlockHeader{
		Version:        1,
		HashPrevBlock:  prevHash,
		HashMerkleRoot: merkleRoot,
		Timestamp:      1_600_000_000 + height,
		Bits:           0x207fffff,
		Nonce:          height,
	}

	return &Block{
		Header: header,
		Height: height,
		Txs:    txs,
	}
}

// TestScript returns a locking script from raw bytes.
func TestScript(b ...byte) *bscript.Script {
	return bscript.NewFromBytes(b)
}
