package model

import (
	"crypto/sha512"
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// MaxScriptSize is the largest locking script that remains spendable;
// anything longer can never be executed and is classified BigScript.
const MaxScriptSize = 10000

// CoinClass partitions outputs by spendability.
type CoinClass int

const (
	// CoinSpendable outputs participate in the multiset hash and all
	// aggregates.
	CoinSpendable CoinClass = iota

	// CoinOpReturn outputs carry data only; their value is tracked in a
	// separate bucket and they never enter the multiset.
	CoinOpReturn

	// CoinBigScript outputs exceed MaxScriptSize; same treatment as
	// CoinOpReturn, in their own bucket.
	CoinBigScript
)

// Coin is a single unspent transaction output together with the metadata
// needed to reconstruct its canonical serialization. A Coin is immutable
// once created; removal from the set is by exact byte-identity of the
// serialization.
type Coin struct {
	Value         uint64
	Height        uint32
	Coinbase      bool
	LockingScript *bscript.Script
}

func NewCoinFromOutput(output *bt.Output, height uint32, coinbase bool) *Coin {
	return &Coin{
		Value:         output.Satoshis,
		Height:        height,
		Coinbase:      coinbase,
		LockingScript: output.LockingScript,
	}
}

// HeightCode packs the height and coinbase flag into a single uint32: the
// height shifted left one bit with the flag as the least significant bit.
func (c *Coin) HeightCode() uint32 {
	code := c.Height << 1
	if c.Coinbase {
		code |= 1
	}

	return code
}

// Serialize returns the canonical encoding of the coin at the given
// outpoint:
//
//	txid(32) || vout(u32 le) || heightCode(u32 le) ||
//	varint(value) || compactsize(len(script)) || script
//
// The value uses the chainstate varint (MSB base-128 with the +1 offset per
// continuation); the script length uses the wire compact-size.
func (c *Coin) Serialize(txid *chainhash.Hash, vout uint32) []byte {
	script := []byte(*c.LockingScript)

	b := make([]byte, 0, 32+4+4+9+9+len(script))

	b = append(b, txid.CloneBytes()...)
	b = binary.LittleEndian.AppendUint32(b, vout)
	b = binary.LittleEndian.AppendUint32(b, c.HeightCode())
	b = appendChainVarInt(b, c.Value)
	b = append(b, bt.VarInt(len(script)).Bytes()...)
	b = append(b, script...)

	return b
}

// ElementHash returns the 32-byte multiset element for the coin: SHA-512
// truncated to its first half, over the canonical serialization.
func (c *Coin) ElementHash(txid *chainhash.Hash, vout uint32) [32]byte {
	var element [32]byte

	sum := sha512.Sum512(c.Serialize(txid, vout))
	copy(element[:], sum[:32])

	return element
}

// BogoSize is the synthetic size estimate for one unspent output: the fixed
// per-coin overhead 32+4+4+8+2 plus the script length. It is deliberately
// independent of the backing store's representation.
func (c *Coin) BogoSize() uint64 {
	return 32 + 4 + 4 + 8 + 2 + uint64(len(*c.LockingScript))
}

// Classify returns the spendability class of the coin's locking script.
func (c *Coin) Classify() CoinClass {
	if c.LockingScript.IsData() {
		return CoinOpReturn
	}

	if len(*c.LockingScript) > MaxScriptSize {
		return CoinBigScript
	}

	return CoinSpendable
}

// IsSpendable reports whether the coin participates in the multiset.
func (c *Coin) IsSpendable() bool {
	return c.Classify() == CoinSpendable
}

// appendChainVarInt appends v in the chainstate variable-length integer
// format: big-endian base-128 where every byte except the last has the high
// bit set, and each continuation adds one to the remaining value so the
// encoding is bijective.
func appendChainVarInt(b []byte, v uint64) []byte {
	var tmp [10]byte

	n := 0

	for {
		tmp[n] = byte(v & 0x7f)
		if n > 0 {
			tmp[n] |= 0x80
		}

		if v <= 0x7f {
			break
		}

		v = (v >> 7) - 1
		n++
	}

	for i := n; i >= 0; i-- {
		b = append(b, tmp[i])
	}

	return b
}
