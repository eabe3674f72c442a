package coinstatsindex

import (
	"encoding/binary"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Key layout, byte-exact:
//
//	't' || height(u32 be)  -> blockHash(32) || snapshot
//	's' || blockHash(32)   -> snapshot
//	'M'                    -> serialized live digest
//
// Height keys are big-endian so lexicographic iteration order equals
// numeric height order. The hash lane is written only for blocks evicted by
// a reorg; the height lane is overwritten in place and records are never
// deleted.
const (
	dbPrefixHeight = byte('t')
	dbPrefixHash   = byte('s')
	dbPrefixMuset  = byte('M')
)

var musetKey = []byte{dbPrefixMuset}

func heightKey(height uint32) []byte {
	key := make([]byte, 5)
	key[0] = dbPrefixHeight
	binary.BigEndian.PutUint32(key[1:], height)

	return key
}

func heightFromKey(key []byte) (uint32, error) {
	if len(key) != 5 || key[0] != dbPrefixHeight {
		return 0, errors.NewCorruptError("invalid height key of %d bytes", len(key))
	}

	return binary.BigEndian.Uint32(key[1:]), nil
}

func hashKey(blockHash *chainhash.Hash) []byte {
	key := make([]byte, 33)
	key[0] = dbPrefixHash
	copy(key[1:], blockHash.CloneBytes())

	return key
}

// Snapshot is the persisted per-block summary: the digest tag plus the
// aggregate counters that were true when the block was the tip.
type Snapshot struct {
	DigestTag   [32]byte
	TxOutputs   uint64
	BogoSize    uint64
	TotalAmount int64
	DiskSize    uint64

	// Extended variant buckets. Readers tolerate their absence; writers emit
	// them only when the extended snapshot setting is on.
	Extended         bool
	UnclaimedRewards int64
	OpReturnTotal    int64
	BigScriptTotal   int64
}

const (
	snapshotBaseLen     = 32 + 8 + 8 + 8 + 8
	snapshotExtendedLen = snapshotBaseLen + 8 + 8 + 8
)

func (s *Snapshot) Bytes() []byte {
	size := snapshotBaseLen
	if s.Extended {
		size = snapshotExtendedLen
	}

	b := make([]byte, 0, size)

	b = append(b, s.DigestTag[:]...)
	b = binary.LittleEndian.AppendUint64(b, s.TxOutputs)
	b = binary.LittleEndian.AppendUint64(b, s.BogoSize)
	b = binary.LittleEndian.AppendUint64(b, uint64(s.TotalAmount))
	b = binary.LittleEndian.AppendUint64(b, s.DiskSize)

	if s.Extended {
		b = binary.LittleEndian.AppendUint64(b, uint64(s.UnclaimedRewards))
		b = binary.LittleEndian.AppendUint64(b, uint64(s.OpReturnTotal))
		b = binary.LittleEndian.AppendUint64(b, uint64(s.BigScriptTotal))
	}

	return b
}

func NewSnapshotFromBytes(b []byte) (*Snapshot, error) {
	if len(b) != snapshotBaseLen && len(b) != snapshotExtendedLen {
		return nil, errors.NewCorruptError("snapshot must be %d or %d bytes, got %d", snapshotBaseLen, snapshotExtendedLen, len(b))
	}

	s := &Snapshot{}

	copy(s.DigestTag[:], b[:32])
	s.TxOutputs = binary.LittleEndian.Uint64(b[32:])
	s.BogoSize = binary.LittleEndian.Uint64(b[40:])
	s.TotalAmount = int64(binary.LittleEndian.Uint64(b[48:]))
	s.DiskSize = binary.LittleEndian.Uint64(b[56:])

	if len(b) == snapshotExtendedLen {
		s.Extended = true
		s.UnclaimedRewards = int64(binary.LittleEndian.Uint64(b[64:]))
		s.OpReturnTotal = int64(binary.LittleEndian.Uint64(b[72:]))
		s.BigScriptTotal = int64(binary.LittleEndian.Uint64(b[80:]))
	}

	return s, nil
}

// encodeHeightRecord builds the height-lane value: the block hash followed
// by the snapshot.
func encodeHeightRecord(blockHash *chainhash.Hash, snapshot *Snapshot) []byte {
	snap := snapshot.Bytes()

	b := make([]byte, 0, 32+len(snap))
	b = append(b, blockHash.CloneBytes()...)
	b = append(b, snap...)

	return b
}

func decodeHeightRecord(b []byte) (*chainhash.Hash, *Snapshot, error) {
	if len(b) < 32 {
		return nil, nil, errors.NewCorruptError("height record too short: %d bytes", len(b))
	}

	blockHash, err := chainhash.NewHash(b[:32])
	if err != nil {
		return nil, nil, errors.NewCorruptError("invalid block hash in height record", err)
	}

	snapshot, err := NewSnapshotFromBytes(b[32:])
	if err != nil {
		return nil, nil, err
	}

	return blockHash, snapshot, nil
}
