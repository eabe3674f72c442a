package model

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// BlockHeader is the 80-byte header of a block.
type BlockHeader struct {
	// Version of the block. This is not the same as the protocol version.
	Version uint32

	// Hash of the previous block header in the blockchain.
	HashPrevBlock *chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	HashMerkleRoot *chainhash.Hash

	// Time the block was created in unix time.
	Timestamp uint32

	// Difficulty target for the block, compact form.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32
}

func NewBlockHeaderFromBytes(headerBytes []byte) (*BlockHeader, error) {
	if len(headerBytes) != 80 {
		return nil, errors.NewBlockInvalidError("block header should be 80 bytes long, got %d", len(headerBytes))
	}

	hashPrevBlock, err := chainhash.NewHash(headerBytes[4:36])
	if err != nil {
		return nil, errors.NewBlockInvalidError("error creating previous block hash from bytes", err)
	}

	hashMerkleRoot, err := chainhash.NewHash(headerBytes[36:68])
	if err != nil {
		return nil, errors.NewBlockInvalidError("error creating merkle root hash from bytes", err)
	}

	return &BlockHeader{
		Version:        binary.LittleEndian.Uint32(headerBytes[:4]),
		HashPrevBlock:  hashPrevBlock,
		HashMerkleRoot: hashMerkleRoot,
		Timestamp:      binary.LittleEndian.Uint32(headerBytes[68:72]),
		Bits:           binary.LittleEndian.Uint32(headerBytes[72:76]),
		Nonce:          binary.LittleEndian.Uint32(headerBytes[76:]),
	}, nil
}

func NewBlockHeaderFromString(headerHex string) (*BlockHeader, error) {
	headerBytes, err := hex.DecodeString(headerHex)
	if err != nil {
		return nil, errors.NewBlockInvalidError("error decoding hex string to bytes", err)
	}

	return NewBlockHeaderFromBytes(headerBytes)
}

func (bh *BlockHeader) Bytes() []byte {
	b := make([]byte, 0, 80)

	b = binary.LittleEndian.AppendUint32(b, bh.Version)
	b = append(b, bh.HashPrevBlock.CloneBytes()...)
	b = append(b, bh.HashMerkleRoot.CloneBytes()...)
	b = binary.LittleEndian.AppendUint32(b, bh.Timestamp)
	b = binary.LittleEndian.AppendUint32(b, bh.Bits)
	b = binary.LittleEndian.AppendUint32(b, bh.Nonce)

	return b
}

func (bh *BlockHeader) Hash() *chainhash.Hash {
	hash := chainhash.DoubleHashH(bh.Bytes())
	return &hash
}

func (bh *BlockHeader) String() string {
	return bh.Hash().String()
}
