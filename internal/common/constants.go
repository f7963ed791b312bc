// Package common contains common constants and variables used across services
package common

import "github.com/ethereum/go-ethereum/common"

var (
	// VaultAddress is the Balancer V2 vault, identical on every supported chain.
	VaultAddress = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")
	ZeroAddress  = common.Address{}
)

const (
	ChainIDMainnet  uint64 = 1
	ChainIDPolygon  uint64 = 137
	ChainIDArbitrum uint64 = 42161
	ChainIDGnosis   uint64 = 100

	DefaultSlippageBps uint16 = 50
)
