package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	container "github.com/thehyperflames/dicontainer-go"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/metrics"
)

const VERIFIER_SERVICE = "onchain.Verifier"

const queryBatchSwapMethod = "queryBatchSwap"

// vaultABI holds the subset of IVault used for quote verification.
const vaultABI = `[{
	"name": "queryBatchSwap",
	"type": "function",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "kind", "type": "uint8"},
		{"name": "swaps", "type": "tuple[]", "components": [
			{"name": "poolId", "type": "bytes32"},
			{"name": "assetInIndex", "type": "uint256"},
			{"name": "assetOutIndex", "type": "uint256"},
			{"name": "amount", "type": "uint256"},
			{"name": "userData", "type": "bytes"}
		]},
		{"name": "assets", "type": "address[]"},
		{"name": "funds", "type": "tuple", "components": [
			{"name": "sender", "type": "address"},
			{"name": "fromInternalBalance", "type": "bool"},
			{"name": "recipient", "type": "address"},
			{"name": "toInternalBalance", "type": "bool"}
		]}
	],
	"outputs": [{"name": "assetDeltas", "type": "int256[]"}]
}]`

var (
	ErrVerificationDisabled = errors.New("verification disabled")
	ErrVerificationFailed   = errors.New("verification failed")
)

var parsedVaultABI = mustParseABI(vaultABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Verifier re-prices assembled swaps with the vault's own query so a quote can
// be checked against chain state before it is returned.
type Verifier struct {
	container.BaseDIInstance

	logger  *cmn.ServiceLogger
	client  ethereum.ContractCaller
	closer  func()
	vault   common.Address
	timeout time.Duration
	enabled bool
}

// NewVerifier wires a verifier around any contract caller, typically an
// *ethclient.Client.
func NewVerifier(client ethereum.ContractCaller, vault common.Address, timeout time.Duration) *Verifier {
	v := &Verifier{
		client:  client,
		vault:   vault,
		timeout: timeout,
		enabled: client != nil,
	}
	v.logger = cmn.NewServiceLogger(v)
	return v
}

func (v *Verifier) ID() string {
	return VERIFIER_SERVICE
}

func (v *Verifier) Configure(c container.IContainer) error {
	v.logger = cmn.NewServiceLogger(v)
	conf := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	v.vault = conf.VaultAddress
	v.timeout = time.Duration(conf.VerifyTimeoutMs) * time.Millisecond
	if !conf.VerifyEnabled {
		return nil
	}

	client, err := ethclient.Dial(conf.RPCUrl)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	v.client = client
	v.closer = client.Close
	v.enabled = true
	return nil
}

func (v *Verifier) Start() error {
	v.logger.Info().Bool("enabled", v.enabled).Str("vault", v.vault.Hex()).Msg("verifier ready")
	return nil
}

func (v *Verifier) Stop() error {
	if v.closer != nil {
		v.closer()
	}
	return nil
}

func (v *Verifier) Enabled() bool {
	return v.enabled
}

func (v *Verifier) Timeout() time.Duration {
	return v.timeout
}

// QueryBatchSwap returns the vault's asset deltas for steps. Positive deltas
// are paid into the vault, negative ones are paid out.
func (v *Verifier) QueryBatchSwap(ctx context.Context, kind domain.SwapKind, steps []domain.BatchSwapStep, assets []common.Address) ([]*big.Int, error) {
	if !v.enabled {
		return nil, ErrVerificationDisabled
	}

	input, err := parsedVaultABI.Pack(queryBatchSwapMethod, uint8(kind), steps, assets, domain.FundManagement{})
	if err != nil {
		return nil, fmt.Errorf("%w: pack: %w", ErrVerificationFailed, err)
	}

	out, err := v.client.CallContract(ctx, ethereum.CallMsg{To: &v.vault, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: call: %w", ErrVerificationFailed, err)
	}

	values, err := parsedVaultABI.Unpack(queryBatchSwapMethod, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack: %w", ErrVerificationFailed, err)
	}
	deltas, ok := values[0].([]*big.Int)
	if !ok || len(deltas) != len(assets) {
		return nil, fmt.Errorf("%w: unexpected deltas %T", ErrVerificationFailed, values[0])
	}
	return deltas, nil
}

// VerifyQuote queries the vault for q and returns the amounts it would settle:
// what goes in for tokenIn and what comes out for tokenOut. The call is
// bounded by the configured timeout.
func (v *Verifier) VerifyQuote(ctx context.Context, q *domain.RoutedQuote) (amountIn, amountOut *uint256.Int, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.VerificationRequests.WithLabelValues(status).Inc()
		metrics.VerificationDuration.Observe(time.Since(start).Seconds())
	}()

	steps := q.Steps
	if !q.IsBatch && q.SingleSwap != nil {
		steps = []domain.BatchSwapStep{{
			PoolId:        q.SingleSwap.PoolId,
			AssetInIndex:  big.NewInt(0),
			AssetOutIndex: big.NewInt(1),
			Amount:        q.SingleSwap.Amount,
			UserData:      q.SingleSwap.UserData,
		}}
	}
	if len(steps) == 0 {
		return nil, nil, fmt.Errorf("%w: quote has no steps", ErrVerificationFailed)
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	deltas, err := v.QueryBatchSwap(ctx, q.Kind, steps, q.Assets)
	if err != nil {
		return nil, nil, err
	}

	inIdx, outIdx := indexOf(q.Assets, q.TokenIn.Address), indexOf(q.Assets, q.TokenOut.Address)
	if inIdx < 0 || outIdx < 0 {
		return nil, nil, fmt.Errorf("%w: endpoint missing from assets", ErrVerificationFailed)
	}
	amountIn, overflowIn := uint256.FromBig(deltas[inIdx])
	amountOut, overflowOut := uint256.FromBig(new(big.Int).Neg(deltas[outIdx]))
	if overflowIn || overflowOut || deltas[inIdx].Sign() < 0 || deltas[outIdx].Sign() > 0 {
		return nil, nil, fmt.Errorf("%w: deltas in=%s out=%s", ErrVerificationFailed, deltas[inIdx], deltas[outIdx])
	}
	return amountIn, amountOut, nil
}

func indexOf(assets []common.Address, a common.Address) int {
	for i, x := range assets {
		if x == a {
			return i
		}
	}
	return -1
}
