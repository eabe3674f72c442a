package model

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/bsv-blockchain/go-chaincfg"
)

// Two mainnet blocks mined coinbases with the same txid as an earlier
// coinbase, so only the first occurrence contributes outputs to the UTXO
// set. The pairs are fixed historical facts; no other network carries them.
var duplicateCoinbaseBlocks = map[uint32]string{
	91842: "00000000000a4d0a398161ffc163c503763b1f4360639393e0e4c8e300e0caec",
	91880: "00000000000743f190a18c5577a3c2d2a1f610ae9601ac046a38084ccb7cd721",
}

// IsDuplicateCoinbaseHeight reports whether the block at the given height
// and hash is one of the historical duplicate-coinbase blocks for the
// configured network. The applier must skip the coinbase outputs of these
// blocks: their txids already exist in the set and re-adding them would
// double-count elements that a later spend removes only once.
func IsDuplicateCoinbaseHeight(height uint32, blockHash *chainhash.Hash, params *chaincfg.Params) bool {
	if params == nil || params.Name != "mainnet" {
		return false
	}

	want, ok := duplicateCoinbaseBlocks[height]
	if !ok {
		return false
	}

	return blockHash.String() == want
}
