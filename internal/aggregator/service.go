package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/balancer/backend-sub000/internal/adapters/onchain"
	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/domain"
	"github.com/balancer/backend-sub000/internal/metrics"
	"github.com/balancer/backend-sub000/internal/pools"
	"github.com/balancer/backend-sub000/internal/services/market"
	"github.com/balancer/backend-sub000/internal/services/router"
)

const AGGREGATOR_SERVICE = "aggregator-service"

// Snapshotter hands out the current immutable pool set.
type Snapshotter interface {
	Snapshot() *pools.Set
}

// CandidateSource enumerates candidate paths and knows every routable token.
type CandidateSource interface {
	router.CandidateProvider
	Token(a common.Address) (*domain.Token, bool)
}

// QuoteVerifier re-prices an assembled quote against chain state.
type QuoteVerifier interface {
	Enabled() bool
	VerifyQuote(ctx context.Context, q *domain.RoutedQuote) (amountIn, amountOut *uint256.Int, err error)
}

type Service struct {
	container.BaseDIInstance

	logger     *cmn.ServiceLogger
	config     *config.AggregatorConfig
	routerConf *config.RouterConfig

	market     Snapshotter
	candidates CandidateSource
	router     *router.Router
	verifier   QuoteVerifier
	cache      *QuoteCache
}

// NewService wires the quote pipeline outside the container. verifier may be
// nil.
func NewService(conf *config.AggregatorConfig, routerConf *config.RouterConfig, snapshots Snapshotter, candidates CandidateSource, verifier QuoteVerifier) *Service {
	svc := &Service{}
	svc.init(conf, routerConf, snapshots, candidates, verifier)
	return svc
}

func (svc *Service) ID() string {
	return AGGREGATOR_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.init(
		c.GetConfig(config.AGGREGATOR_CONFIG_KEY).(*config.AggregatorConfig),
		c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig),
		c.Instance(market.ServiceName).(*market.Service),
		c.Instance(router.ROUTER_SERVICE).(*router.Graph),
		c.Instance(onchain.VERIFIER_SERVICE).(*onchain.Verifier),
	)
	return nil
}

func (svc *Service) init(conf *config.AggregatorConfig, routerConf *config.RouterConfig, snapshots Snapshotter, candidates CandidateSource, verifier QuoteVerifier) {
	svc.logger = cmn.NewServiceLogger(svc)
	svc.config = conf
	svc.routerConf = routerConf
	svc.market = snapshots
	svc.candidates = candidates
	svc.router = router.NewRouter()
	svc.verifier = verifier
	if conf.QuoteCacheTTLMs > 0 {
		svc.cache = NewQuoteCache(time.Duration(conf.QuoteCacheTTLMs) * time.Millisecond)
	}
}

func (svc *Service) Start() error {
	return nil
}

func (svc *Service) Stop() error {
	if svc.cache != nil {
		svc.cache.Stop()
	}
	return nil
}

// Quote prices req against the current snapshot. A request no path can serve
// gets a zero quote, not an error. Errors are reserved for malformed requests
// and assembly failures.
func (svc *Service) Quote(ctx context.Context, req domain.QuoteRequest) (q *domain.RoutedQuote, err error) {
	start := time.Now()
	kind := req.Kind.String()
	defer func() {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case q.IsZero():
			status = "no_route"
		}
		metrics.QuoteRequests.WithLabelValues(kind, status).Inc()
		metrics.QuoteDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	amount, err := svc.validate(req)
	if err != nil {
		return nil, err
	}
	slippageBps := req.SlippageBps
	if slippageBps == 0 {
		slippageBps = uint16(svc.routerConf.DefaultSlippageBps)
	}

	set := svc.market.Snapshot()
	key := quoteKey{
		tokenIn:     req.TokenIn,
		tokenOut:    req.TokenOut,
		kind:        req.Kind,
		slippageBps: slippageBps,
		verify:      req.Verify,
		amount:      amount.Dec(),
	}
	if svc.cache != nil {
		if cached := svc.cache.Get(key, set); cached != nil {
			metrics.QuoteCacheHits.Inc()
			return cached, nil
		}
		metrics.QuoteCacheMisses.Inc()
	}

	q, err = svc.quote(ctx, req, set, amount, slippageBps)
	if err != nil {
		return nil, err
	}
	if svc.cache != nil {
		svc.cache.Set(key, set, q)
	}
	return q, nil
}

func (svc *Service) quote(ctx context.Context, req domain.QuoteRequest, set *pools.Set, amount *uint256.Int, slippageBps uint16) (*domain.RoutedQuote, error) {
	tokenIn, okIn := svc.candidates.Token(req.TokenIn)
	tokenOut, okOut := svc.candidates.Token(req.TokenOut)
	if !okIn || !okOut {
		svc.logger.Debug().
			Str("tokenIn", req.TokenIn.Hex()).
			Str("tokenOut", req.TokenOut.Hex()).
			Msg("token not routable")
		return domain.ZeroQuote(req.Kind, svc.unknownToken(tokenIn, req.TokenIn), svc.unknownToken(tokenOut, req.TokenOut)), nil
	}

	given := tokenIn
	if req.Kind == domain.GivenOut {
		given = tokenOut
	}

	paths, err := svc.candidates.Candidates(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	route, err := svc.router.SelectRoute(tokenIn, tokenOut, paths, set, req.Kind, domain.NewTokenAmount(given, amount))
	if errors.Is(err, cmn.ErrNoCandidatePaths) {
		return domain.ZeroQuote(req.Kind, tokenIn, tokenOut), nil
	}
	if err != nil {
		return nil, err
	}

	q, swap, err := router.BuildQuote(route, set, slippageBps)
	if err != nil {
		return nil, err
	}
	if q.PriceImpactAvailable {
		metrics.PriceImpact.WithLabelValues(req.Kind.String()).Observe(float64(router.ImpactBps(q.PriceImpact)))
	}

	if req.Verify && svc.verifier != nil && svc.verifier.Enabled() {
		svc.verify(ctx, q, swap, slippageBps)
	}
	return q, nil
}

// verify replaces the quoted amounts with the vault's when the query succeeds
// in time. On failure the computed quote stands, unverified.
func (svc *Service) verify(ctx context.Context, q *domain.RoutedQuote, swap *router.Swap, slippageBps uint16) {
	amountIn, amountOut, err := svc.verifier.VerifyQuote(ctx, q)
	if err != nil {
		svc.logger.Warn().Err(err).Str("split", q.SplitLabel).Msg("verification failed, returning computed quote")
		return
	}

	limits, err := swap.Limits(router.SlippageFromBps(slippageBps), amountIn, amountOut)
	if err != nil {
		svc.logger.Warn().Err(err).Msg("limits from verified amounts failed")
		return
	}
	if !amountIn.Eq(q.AmountIn) || !amountOut.Eq(q.AmountOut) {
		svc.logger.Debug().
			Str("computedIn", q.AmountIn.Dec()).
			Str("verifiedIn", amountIn.Dec()).
			Str("computedOut", q.AmountOut.Dec()).
			Str("verifiedOut", amountOut.Dec()).
			Msg("verified amounts differ")
	}
	q.AmountIn, q.AmountOut, q.Limits = amountIn, amountOut, limits
	q.Verified = true
}

func (svc *Service) validate(req domain.QuoteRequest) (*uint256.Int, error) {
	if req.ChainID != svc.config.ChainID {
		return nil, fmt.Errorf("%w: chain %d is not served", cmn.ErrInvalidSwap, req.ChainID)
	}
	if req.TokenIn == req.TokenOut {
		return nil, fmt.Errorf("%w: token in equals token out", cmn.ErrInvalidPath)
	}
	if req.Kind != domain.GivenIn && req.Kind != domain.GivenOut {
		return nil, fmt.Errorf("%w: swap kind %d", cmn.ErrInvalidSwap, req.Kind)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", cmn.ErrInvalidSwap)
	}
	amount, overflow := uint256.FromBig(req.Amount)
	if overflow {
		return nil, fmt.Errorf("%w: amount overflows 256 bits", cmn.ErrInvalidSwap)
	}
	if req.SlippageBps > 10_000 {
		return nil, fmt.Errorf("%w: slippage %d bps above 100%%", cmn.ErrInvalidSwap, req.SlippageBps)
	}
	return amount, nil
}

// unknownToken stands in for a token the snapshot has never seen. Its
// decimals are unknown, so the EVM default is assumed.
func (svc *Service) unknownToken(known *domain.Token, a common.Address) *domain.Token {
	if known != nil {
		return known
	}
	return domain.NewToken(svc.config.ChainID, a, 18)
}

// Snapshot exposes the pool set quotes are currently priced against.
func (svc *Service) Snapshot() *pools.Set {
	return svc.market.Snapshot()
}
