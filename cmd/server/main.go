// Package main runs the bounty and reputation API server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/answerpool/service_layer/internal/app"
	"github.com/answerpool/service_layer/internal/app/httpapi"
	"github.com/answerpool/service_layer/internal/app/metrics"
	"github.com/answerpool/service_layer/internal/app/storage/postgres"
	"github.com/answerpool/service_layer/internal/config"
	"github.com/answerpool/service_layer/internal/custody"
	custodyrpc "github.com/answerpool/service_layer/internal/custody/rpc"
	"github.com/answerpool/service_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the YAML configuration file")
	envFile := flag.String("env", "", "Optional .env file loaded before configuration")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			logger.NewDefault("server").WithError(err).Fatalf("load env file %s", *envFile)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("server").WithError(err).Fatal("load configuration")
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	stores := app.Stores{}
	if cfg.Database.URL != "" {
		pg, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		defer pg.Close()

		if err := pg.Migrate(context.Background()); err != nil {
			log.WithError(err).Fatal("migrate postgres schema")
		}

		stores = app.Stores{
			Questions:  pg,
			Answers:    pg,
			Reputation: pg,
			Treasury:   pg,
		}
		log.Info("using postgres storage")
	} else {
		log.Info("using in-memory storage")
	}

	deps := app.Dependencies{PlatformOwner: cfg.Platform.Owner}
	if cfg.Custody.RPCURL != "" {
		client, err := custodyrpc.NewClient(custodyrpc.Config{
			URL:           cfg.Custody.RPCURL,
			EscrowAccount: cfg.Custody.EscrowAccount,
			Timeout:       cfg.Custody.Timeout,
		})
		if err != nil {
			log.WithError(err).Fatal("build custody client")
		}
		deps.Ledger = client
		deps.Oracle = client
		log.WithField("url", cfg.Custody.RPCURL).Info("using remote custody ledger")
	} else {
		bank := custody.NewBank()
		deps.Ledger = bank
		deps.Oracle = bank
		log.Warn("no custody RPC configured; using in-memory bank")
	}
	if cfg.Sweeper.Enabled {
		deps.SweepInterval = cfg.Sweeper.Interval
	}

	application, err := app.New(stores, deps, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.InstrumentHandler(httpapi.NewHandler(application)))

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("API listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}

	log.Info("stopped")
}
