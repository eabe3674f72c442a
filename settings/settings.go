// Package settings loads the process configuration from gocore config
// (environment, settings.conf) into a typed Settings struct handed to every
// service at construction.
package settings

import (
	"github.com/bsv-blockchain/go-chaincfg"
)

type Settings struct {
	ClientName     string
	DataFolder     string
	LogLevel       string
	ChainCfgParams *chaincfg.Params

	CoinStats CoinStatsSettings
}

// CoinStatsSettings configures the coin stats index.
type CoinStatsSettings struct {
	// StoreType selects the KV backend: "leveldb" or "memory".
	StoreType string

	// StorePath is the on-disk location of the leveldb backend.
	StorePath string

	// Algorithm selects the multiset hash: "muhash" or "lthash".
	Algorithm string

	// ExtendedSnapshot enables the extended snapshot variant that tracks
	// unclaimed rewards, OP_RETURN and oversized-script buckets. When off,
	// unspendable output values are dropped.
	ExtendedSnapshot bool

	// BlockBatchSize caps how many blocks the sync loop applies between
	// checks of the stop flag.
	BlockBatchSize int
}

func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	dataFolder := getString("dataFolder", "data")

	return &Settings{
		ClientName:     getString("clientName", "coinstatsindex"),
		DataFolder:     dataFolder,
		LogLevel:       getString("logLevel", "INFO"),
		ChainCfgParams: params,
		CoinStats: CoinStatsSettings{
			StoreType:        getString("coinstats_storeType", "leveldb"),
			StorePath:        getString("coinstats_storePath", dataFolder+"/coinstatsindex"),
			Algorithm:        getString("coinstats_algorithm", "muhash"),
			ExtendedSnapshot: getBool("coinstats_extendedSnapshot", false),
			BlockBatchSize:   getInt("coinstats_blockBatchSize", 128),
		},
	}
}
