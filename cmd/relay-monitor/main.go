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
	"github.com/relaymetrics/relay-monitor/pkg/data"
	"github.com/relaymetrics/relay-monitor/pkg/geoip"
	"github.com/relaymetrics/relay-monitor/pkg/monitor"
	"github.com/relaymetrics/relay-monitor/pkg/onionoo"
	"github.com/relaymetrics/relay-monitor/pkg/output"
	"github.com/relaymetrics/relay-monitor/pkg/reporter"
	"github.com/relaymetrics/relay-monitor/pkg/store"
	"github.com/relaymetrics/relay-monitor/pkg/website"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile   = flag.String("config", "config.example.yaml", "path to config file")
	snapshotFile = flag.String("snapshot", "", "analyze a saved snapshot instead of fetching one")
	once         = flag.Bool("once", false, "run a single cycle and exit")
)

func newLogger(config *config.LogConfig) (*zap.Logger, error) {
	loggingConfig := zap.NewDevelopmentConfig()
	loggingConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if config.Format == "json" {
		loggingConfig = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	loggingConfig.Level = zap.NewAtomicLevelAt(level)

	return loggingConfig.Build()
}

func main() {
	flag.Parse()

	config, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	zapLogger, err := newLogger(config.Log)
	if err != nil {
		log.Fatalf("could not open log file: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()
	logger := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resolver data.CountryResolver
	if config.GeoIP.Path != "" {
		db, err := geoip.Open(config.GeoIP.Path)
		if err != nil {
			logger.Fatalw("could not open geoip database", "path", config.GeoIP.Path, "error", err)
		}
		defer db.Close()
		resolver = db
	}

	var fetcher monitor.Fetcher
	switch {
	case *snapshotFile != "":
		fetcher = &onionoo.FileSource{Path: *snapshotFile}
	case config.Onionoo.SnapshotPath != "":
		fetcher = &onionoo.FileSource{Path: config.Onionoo.SnapshotPath}
	default:
		client, err := onionoo.NewClient(config.Onionoo.Endpoint, zapLogger,
			onionoo.WithTimeout(config.Onionoo.Timeout),
			onionoo.WithRetry(config.Onionoo.RetryAttempts, config.Onionoo.RetryDelay),
		)
		if err != nil {
			logger.Fatalw("could not create onionoo client", "error", err)
		}
		fetcher = client
	}

	reportStore, err := store.New(config.Store, zapLogger)
	if err != nil {
		logger.Fatalw("could not create store", "driver", config.Store.Driver, "error", err)
	}
	defer reportStore.Close()

	history, err := store.NewHistoryCache(config.Cache.Size, config.Cache.Expiry)
	if err != nil {
		logger.Fatalw("could not create bandwidth history cache", "error", err)
	}

	var outputs []monitor.Publisher
	if config.Output.Path != "" || config.Output.Kafka != nil {
		var kafkaConfig *output.KafkaConfig
		if config.Output.Kafka != nil {
			kafkaConfig = &output.KafkaConfig{
				Topic:            config.Output.Kafka.Topic,
				BootstrapServers: config.Output.Kafka.BootstrapServers,
			}
		}
		out, err := output.NewOutput(config.Output.Path, kafkaConfig)
		if err != nil {
			logger.Fatalw("could not open output", "error", err)
		}
		defer out.Close()
		outputs = append(outputs, out)
	}

	m := monitor.New(&monitor.Opts{
		Network:  config.Network.Name,
		Analysis: config.Analysis,
		Fetcher:  fetcher,
		Resolver: resolver,
		History:  history,
		Store:    reportStore,
		Outputs:  outputs,
		Logger:   zapLogger,
	})

	logger.Infof("starting relay monitor for %s network", config.Network.Name)

	if *once {
		_, err := m.Run(ctx)
		if err != nil {
			logger.Fatalw("run failed", "error", err)
		}
		return
	}

	apiServer := api.New(config.API, zapLogger, reportStore)
	if config.API.Enabled {
		go func() {
			err := apiServer.Run(ctx)
			if err != nil {
				logger.Warnw("error running API server", "error", err)
			}
		}()
	}

	if config.Website.Enabled {
		srv, err := website.NewWebserver(&website.WebserverOpts{
			ListenAddress:     fmt.Sprintf("%s:%d", config.Website.Host, config.Website.Port),
			Network:           config.Network.Name,
			Reporter:          reporter.NewReporter(reportStore, config.Website.PageSize, logger),
			API:               apiServer,
			Log:               logger,
			ShowConfigDetails: config.Website.ShowConfigDetails,
			LinkAPI:           api.PathReport,
			PageSize:          config.Website.PageSize,
		})
		if err != nil {
			logger.Fatalw("could not create website", "error", err)
		}
		go func() {
			err := srv.StartServer(ctx)
			if err != nil {
				logger.Warnw("error running website", "error", err)
			}
		}()
	}

	run := func() {
		_, err := m.Run(ctx)
		if err != nil {
			logger.Warnw("scheduled run did not publish", "error", err)
		}
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(config.Schedule.Cron, run)
	if err != nil {
		logger.Fatalw("could not parse schedule", "schedule", config.Schedule.Cron, "error", err)
	}

	run()
	scheduler.Start()
	logger.Infow("scheduled runs", "schedule", config.Schedule.Cron)

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logger.Info("relay monitor stopped")
}
