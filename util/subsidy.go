package util

import (
	"github.com/bsv-blockchain/go-chaincfg"
)

const baseSubsidy = 50 * 100_000_000 // satoshis

// GetBlockSubsidyForHeight returns the miner subsidy for a block at the
// given height, halving every SubsidyReductionInterval blocks.
func GetBlockSubsidyForHeight(height uint32, params *chaincfg.Params) uint64 {
	if params == nil || params.SubsidyReductionInterval <= 0 {
		return baseSubsidy
	}

	halvings := height / uint32(params.SubsidyReductionInterval)
	if halvings >= 64 {
		return 0
	}

	return baseSubsidy >> halvings
}
