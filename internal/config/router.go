package config

import (
	"fmt"
	"strings"

	"github.com/andrew-solarstorm/go-packages/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const ROUTER_CONFIG_KEY = "router-config"

type RouterConfig struct {
	// MaxHops bounds the length of candidate paths.
	// Default: 3
	MaxHops int

	// MaxPaths bounds how many candidates are handed to route selection.
	// Default: 8
	MaxPaths int

	// MaxNonCoreHops bounds intermediate tokens outside CoreTokens.
	// Default: 1
	MaxNonCoreHops int

	// CoreTokens are comma-separated addresses routed through freely
	// (WETH, stablecoins).
	CoreTokens []ethcommon.Address

	// DefaultSlippageBps applies when a request does not set one.
	// Default: 50
	DefaultSlippageBps int

	// CandidateCacheSize is the number of token pairs whose candidates are kept.
	// Default: 4096
	CandidateCacheSize int
}

func (c *RouterConfig) Key() string {
	return ROUTER_CONFIG_KEY
}

func (c *RouterConfig) Load() error {
	c.MaxHops = common.GetEnvOrDefaultInt("ROUTER_MAX_HOPS", 3)
	c.MaxPaths = common.GetEnvOrDefaultInt("ROUTER_MAX_PATHS", 8)
	c.MaxNonCoreHops = common.GetEnvOrDefaultInt("ROUTER_MAX_NON_CORE_HOPS", 1)
	c.DefaultSlippageBps = common.GetEnvOrDefaultInt("ROUTER_DEFAULT_SLIPPAGE_BPS", 50)
	c.CandidateCacheSize = common.GetEnvOrDefaultInt("ROUTER_CANDIDATE_CACHE_SIZE", 4096)

	core, err := parseAddressList(common.GetEnvOrDefault("ROUTER_CORE_TOKENS", ""))
	if err != nil {
		return err
	}
	c.CoreTokens = core
	return c.Validate()
}

func (c *RouterConfig) Validate() error {
	if c.MaxHops < 1 || c.MaxHops > 4 {
		return fmt.Errorf("ROUTER_MAX_HOPS must be between 1 and 4, got %d", c.MaxHops)
	}
	if c.MaxPaths < 1 {
		return fmt.Errorf("ROUTER_MAX_PATHS must be positive, got %d", c.MaxPaths)
	}
	if c.MaxNonCoreHops < 0 {
		return fmt.Errorf("ROUTER_MAX_NON_CORE_HOPS must not be negative, got %d", c.MaxNonCoreHops)
	}
	if c.DefaultSlippageBps < 0 || c.DefaultSlippageBps > 10_000 {
		return fmt.Errorf("ROUTER_DEFAULT_SLIPPAGE_BPS out of range: %d", c.DefaultSlippageBps)
	}
	if c.CandidateCacheSize < 1 {
		return fmt.Errorf("ROUTER_CANDIDATE_CACHE_SIZE must be positive, got %d", c.CandidateCacheSize)
	}
	return nil
}

func parseAddressList(raw string) ([]ethcommon.Address, error) {
	var out []ethcommon.Address
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !ethcommon.IsHexAddress(part) {
			return nil, fmt.Errorf("invalid address %q", part)
		}
		out = append(out, ethcommon.HexToAddress(part))
	}
	return out, nil
}
