package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/balancer/backend-sub000/internal/adapters/onchain"
	"github.com/balancer/backend-sub000/internal/aggregator"
	"github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/config"
	"github.com/balancer/backend-sub000/internal/http"
	"github.com/balancer/backend-sub000/internal/services/market"
	"github.com/balancer/backend-sub000/internal/services/router"
)

func main() {
	common.InitRuntime()

	// load env; a missing .env is fine when the environment is set directly
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	general := &config.GeneralConfig{}
	if err := general.Load(); err != nil {
		log.Error().Err(err).Msg("invalid general config")
		return
	}
	common.SetGlobalLevel(general.LogLevel)

	// di container config
	conf := container.NewConf(
		general,
		&config.RouterConfig{},
		&config.AggregatorConfig{},
		&config.RPCConfig{},
	)

	// di container
	dic, err := container.New(
		// config
		conf,

		// services, in dependency order
		&router.Graph{},
		&market.Service{},
		&onchain.Verifier{},
		&aggregator.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run blocks until SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
