package model

import (
	"encoding/binary"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeightCode(t *testing.T) {
	coin := &Coin{Height: 100, Coinbase: true, LockingScript: TestScript(0x51)}
	assert.Equal(t, uint32(201), coin.HeightCode())

	coin.Coinbase = false
	assert.Equal(t, uint32(200), coin.HeightCode())
}

func TestBogoSize(t *testing.T) {
	// fixed overhead 32+4+4+8+2 plus a one-byte script
	coin := &Coin{Value: 5_000_000_000, Height: 0, Coinbase: true, LockingScript: TestScript(0x51)}
	assert.Equal(t, uint64(51), coin.BogoSize())

	coin.LockingScript = TestScript(make([]byte, 25)...)
	assert.Equal(t, uint64(75), coin.BogoSize())
}

func TestSerializeLayout(t *testing.T) {
	var txidBytes [32]byte
	for i := range txidBytes {
		txidBytes[i] = 0xaa
	}

	txid, err := chainhash.NewHash(txidBytes[:])
	require.NoError(t, err)

	coin := &Coin{Value: 5_000_000_000, Height: 0, Coinbase: true, LockingScript: TestScript(0x51)}

	b := coin.Serialize(txid, 0)

	// txid(32) || vout(4) || heightCode(4) || varint(value) ||
	// compactsize(1) || script(1)
	require.Len(t, b, 32+4+4+5+1+1)

	assert.Equal(t, txidBytes[:], b[:32])
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[32:36]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(b[36:40]))

	// 5_000_000_000 in the chainstate varint encoding
	assert.Equal(t, []byte{0x91, 0xcf, 0x96, 0xe3, 0x00}, b[40:45])

	// compact-size script length, then the script itself
	assert.Equal(t, byte(0x01), b[45])
	assert.Equal(t, byte(0x51), b[46])
}

func TestChainVarInt(t *testing.T) {
	tests := []struct {
		value    uint64
		expected []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x00}},
		{0xff, []byte{0x80, 0x7f}},
		{0x4000, []byte{0xff, 0x00}},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, appendChainVarInt(nil, tc.value), "value %d", tc.value)
	}
}

func TestElementHash(t *testing.T) {
	txid := &chainhash.Hash{}
	coin := &Coin{Value: 1000, Height: 5, Coinbase: false, LockingScript: TestScript(0x51)}

	e1 := coin.ElementHash(txid, 0)
	e2 := coin.ElementHash(txid, 0)
	e3 := coin.ElementHash(txid, 1)

	assert.Equal(t, e1, e2)
	assert.NotEqual(t, e1, e3)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		script   []byte
		expected CoinClass
	}{
		{"p2pk-ish", []byte{0x51}, CoinSpendable},
		{"op_return", []byte{0x6a, 0x01, 0x02}, CoinOpReturn},
		{"op_false op_return", []byte{0x00, 0x6a, 0x01, 0x02}, CoinOpReturn},
		{"big script", make([]byte, MaxScriptSize+1), CoinBigScript},
		{"max size script", make([]byte, MaxScriptSize), CoinSpendable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			coin := &Coin{Value: 1, LockingScript: TestScript(tc.script...)}
			assert.Equal(t, tc.expected, coin.Classify())
			assert.Equal(t, tc.expected == CoinSpendable, coin.IsSpendable())
		})
	}
}

func TestNewCoinFromOutput(t *testing.T) {
	output := &bt.Output{Satoshis: 42, LockingScript: TestScript(0x51, 0x52)}

	coin := NewCoinFromOutput(output, 7, true)
	assert.Equal(t, uint64(42), coin.Value)
	assert.Equal(t, uint32(7), coin.Height)
	assert.True(t, coin.Coinbase)
	assert.Equal(t, uint64(32+4+4+8+2+2), coin.BogoSize())
}
