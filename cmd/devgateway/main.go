package main

import (
	"flag"

	"github.com/digimartpay/digipay-go/internal/devgateway"
	"github.com/digimartpay/digipay-go/pkg/config"
	"github.com/digimartpay/digipay-go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the config file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithConfig(cfg.Logger)

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "3003"
	}
	if cfg.Server.JWTSecret == "" {
		log.Fatal().Msg("server.jwt_secret is required")
	}

	store := devgateway.NewStore()
	hub := devgateway.NewHub(log)
	go hub.Run()

	srv := devgateway.New(cfg, store, hub, log)
	srv.Start()
}
