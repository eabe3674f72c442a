package coinstatsindex

import (
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, []byte{0x74, 0x00, 0x00, 0x00, 0x01}, heightKey(1))
	assert.Equal(t, []byte{0x74, 0x00, 0x01, 0x00, 0x00}, heightKey(65536))
	assert.Equal(t, []byte{0x4d}, musetKey)

	hash := chainhash.HashH([]byte("block"))
	key := hashKey(&hash)
	require.Len(t, key, 33)
	assert.Equal(t, byte(0x73), key[0])
	assert.Equal(t, hash.CloneBytes(), key[1:])
}

func TestHeightKeyOrdering(t *testing.T) {
	// big-endian heights keep lexicographic order equal to numeric order
	prev := heightKey(0)
	for _, h := range []uint32{1, 2, 255, 256, 65535, 65536, 1 << 24} {
		key := heightKey(h)
		assert.Equal(t, -1, compareBytes(prev, key))
		prev = key
	}
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] < b[i] {
			return -1
		}

		if a[i] > b[i] {
			return 1
		}
	}

	return 0
}

func TestHeightFromKey(t *testing.T) {
	h, err := heightFromKey(heightKey(123456))
	require.NoError(t, err)
	assert.Equal(t, uint32(123456), h)

	_, err = heightFromKey([]byte{0x73, 0, 0, 0, 0})
	require.Error(t, err)

	_, err = heightFromKey([]byte{0x74, 0})
	require.Error(t, err)
}

func TestSnapshotRoundtrip(t *testing.T) {
	var tag [32]byte
	for i := range tag {
		tag[i] = byte(i)
	}

	t.Run("base", func(t *testing.T) {
		s := &Snapshot{
			DigestTag:   tag,
			TxOutputs:   7,
			BogoSize:    357,
			TotalAmount: -5,
			DiskSize:    1 << 40,
		}

		b := s.Bytes()
		require.Len(t, b, snapshotBaseLen)

		restored, err := NewSnapshotFromBytes(b)
		require.NoError(t, err)
		assert.Equal(t, s, restored)
	})

	t.Run("extended", func(t *testing.T) {
		s := &Snapshot{
			DigestTag:        tag,
			TxOutputs:        7,
			BogoSize:         357,
			TotalAmount:      21_000_000,
			DiskSize:         42,
			Extended:         true,
			UnclaimedRewards: 50,
			OpReturnTotal:    -1,
			BigScriptTotal:   9,
		}

		b := s.Bytes()
		require.Len(t, b, snapshotExtendedLen)

		restored, err := NewSnapshotFromBytes(b)
		require.NoError(t, err)
		assert.Equal(t, s, restored)
	})

	t.Run("invalid length", func(t *testing.T) {
		_, err := NewSnapshotFromBytes(make([]byte, 10))
		require.Error(t, err)

		_, err = NewSnapshotFromBytes(make([]byte, snapshotExtendedLen+1))
		require.Error(t, err)
	})
}

func TestHeightRecordRoundtrip(t *testing.T) {
	hash := chainhash.HashH([]byte("block"))
	s := &Snapshot{TxOutputs: 3, BogoSize: 153, TotalAmount: 100, DiskSize: 9}

	b := encodeHeightRecord(&hash, s)
	require.Len(t, b, 32+snapshotBaseLen)

	restoredHash, restoredSnapshot, err := decodeHeightRecord(b)
	require.NoError(t, err)
	assert.Equal(t, hash, *restoredHash)
	assert.Equal(t, s, restoredSnapshot)

	_, _, err = decodeHeightRecord(b[:20])
	require.Error(t, err)
}
