package coinstatsindex

import (
	"github.com/bsv-blockchain/coinstatsindex/model"
	"github.com/bsv-blockchain/coinstatsindex/pkg/multiset"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// CoinsCursor walks every unspent output of a coins view in outpoint order.
type CoinsCursor interface {
	Next() bool
	Outpoint() (*chainhash.Hash, uint32)
	Coin() *model.Coin
	Err() error
	Release()
}

// UTXOStats is the result of a full scan over a coins view. It exists to
// cross-check the incrementally maintained aggregates against an
// independent recount.
type UTXOStats struct {
	TxOutputs   uint64
	BogoSize    uint64
	TotalAmount int64
	DigestTag   [32]byte
	HaveDigest  bool
}

// ScanForStats recounts the aggregate statistics without touching the
// digest.
func ScanForStats(cursor CoinsCursor) (*UTXOStats, error) {
	return scan(cursor, nil)
}

// ScanWithHash recounts the aggregates and folds every spendable coin into
// the given digest; starting from an empty digest, this produces the tag a
// fully synced index would hold.
func ScanWithHash(cursor CoinsCursor, digest multiset.Digest) (*UTXOStats, error) {
	return scan(cursor, digest)
}

func scan(cursor CoinsCursor, digest multiset.Digest) (*UTXOStats, error) {
	defer cursor.Release()

	stats := &UTXOStats{}

	for cursor.Next() {
		coin := cursor.Coin()

		if !coin.IsSpendable() {
			continue
		}

		stats.TxOutputs++
		stats.BogoSize += coin.BogoSize()
		stats.TotalAmount += int64(coin.Value)

		if digest != nil {
			txid, vout := cursor.Outpoint()
			digest.Insert(coin.ElementHash(txid, vout))
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	if digest != nil {
		tag, err := digest.Finalize()
		if err != nil {
			return nil, err
		}

		stats.DigestTag = tag
		stats.HaveDigest = true
	}

	return stats, nil
}
