package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaymetrics/relay-monitor/pkg/api"
	"github.com/relaymetrics/relay-monitor/pkg/config"
	"github.com/relaymetrics/relay-monitor/pkg/reporter"
	"github.com/relaymetrics/relay-monitor/pkg/store"
	"github.com/relaymetrics/relay-monitor/pkg/website"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile = flag.String("config", "config.website.example.yaml", "path to website config file")
)

func main() {
	flag.Parse()

	loggingConfig := zap.NewDevelopmentConfig()
	loggingConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	zapLogger, err := loggingConfig.Build()
	if err != nil {
		log.Fatalf("could not open log file: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()
	logger := zapLogger.Sugar()

	config, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("could not load config: %v", err)
	}

	logger.Infof("using network: %s", config.Network.Name)

	// The website reads what a relay-monitor process published, so an
	// in-memory store would always be empty.
	if config.Store.Driver == "memory" {
		logger.Fatal("the website needs a postgres or sqlite store")
	}

	// Create the store.
	reportStore, err := store.New(config.Store, zapLogger)
	if err != nil {
		logger.Fatalw("could not instantiate store", "driver", config.Store.Driver, "error", err)
	}
	defer reportStore.Close()

	// Create the reporter.
	reporter := reporter.NewReporter(reportStore, config.Website.PageSize, logger)

	websiteListenAddr := fmt.Sprintf("%s:%d", config.Website.Host, config.Website.Port)

	// Create the website service
	opts := &website.WebserverOpts{
		ListenAddress:     websiteListenAddr,
		Network:           config.Network.Name,
		Reporter:          reporter,
		API:               api.New(config.API, zapLogger, reportStore),
		Log:               logger,
		ShowConfigDetails: config.Website.ShowConfigDetails,
		LinkAPI:           api.PathReport,
		PageSize:          config.Website.PageSize,
	}

	srv, err := website.NewWebserver(opts)
	if err != nil {
		logger.Fatalw("failed to create service", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the server
	logger.Infof("webserver starting on %s ...", websiteListenAddr)
	err = srv.StartServer(ctx)
	if err != nil {
		logger.Fatal(err)
	}
}
