package config

import (
	"errors"
	"os"

	"github.com/andrew-solarstorm/go-packages/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type RPCConfig struct {
	RPCUrl string
	// VaultAddress is the Balancer V2 vault queried for verification.
	VaultAddress    ethcommon.Address
	VerifyEnabled   bool
	VerifyTimeoutMs int
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func (r *RPCConfig) Load() error {
	r.RPCUrl = os.Getenv("RPC_URL")
	r.VaultAddress = ethcommon.HexToAddress(common.GetEnvOrDefault("VAULT_ADDRESS", "0xBA12222222228d8Ba445958a75a0704d566BF2C8"))
	r.VerifyEnabled = common.GetEnvOrDefault("VERIFY_ENABLED", "false") == "true"
	r.VerifyTimeoutMs = common.GetEnvOrDefaultInt("VERIFY_TIMEOUT_MS", 1500)
	return r.Validate()
}

func (r *RPCConfig) Validate() error {
	if !r.VerifyEnabled {
		return nil
	}
	if r.RPCUrl == "" || r.VaultAddress == (ethcommon.Address{}) || r.VerifyTimeoutMs <= 0 {
		return errors.New("invalid rpc config")
	}
	return nil
}
