package http

import (
	"context"
	"errors"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/balancer/backend-sub000/internal/aggregator"
	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/http/httputil"
	"github.com/balancer/backend-sub000/internal/http/middlewares"
)

const (
	API_VERSION  = "v1"
	HTTP_SERVICE = "http-service"
)

type HTTPService struct {
	container.BaseDIInstance

	logger        *cmn.ServiceLogger
	aggregatorSvc *aggregator.Service
	rateLimiter   *middlewares.RateLimiter
	server        *gohttp.Server
	conf          *config.GeneralConfig

	handlers []httputil.RouteGroup
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

func (svc *HTTPService) Start() error {
	svc.server = &gohttp.Server{
		Addr:    svc.conf.HTTPHost + ":" + svc.conf.HTTPPort,
		Handler: svc.engine(),
	}
	svc.logger.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
		return err
	}

	return nil
}

func (svc *HTTPService) engine() *gin.Engine {
	if svc.conf.Env == config.ProdEnv {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AllowCredentials = false
	r.Use(cors.New(corsConf))

	r.Use(middlewares.MetricsMiddleware())
	r.Use(svc.rateLimiter.RateLimitMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httputil.Mount(r.Group("api").Group(API_VERSION), svc.handlers...)
	return r
}

func (svc *HTTPService) Configure(c container.IContainer) error {
	svc.logger = cmn.NewServiceLogger(svc)
	svc.conf = c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	if svc.conf == nil {
		return errors.New("invalid server config")
	}

	svc.aggregatorSvc = c.Instance(aggregator.AGGREGATOR_SERVICE).(*aggregator.Service)
	aggConf := c.GetConfig(config.AGGREGATOR_CONFIG_KEY).(*config.AggregatorConfig)
	svc.rateLimiter = middlewares.NewRateLimiter(svc.conf.RateLimit, svc.conf.RateBurst)

	svc.handlers = []httputil.RouteGroup{
		NewPoolHandler(svc.aggregatorSvc),
		NewQuoteHandler(svc.aggregatorSvc, aggConf.ChainID),
	}
	return nil
}

func (svc *HTTPService) Stop() error {
	if svc.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		svc.logger.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	svc.logger.Info().Msg("http server stopped gracefully")
	return nil
}
