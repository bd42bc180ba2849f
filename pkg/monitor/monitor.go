package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/relaymetrics/relay-monitor/pkg/config"
	"github.com/relaymetrics/relay-monitor/pkg/data"
	"github.com/relaymetrics/relay-monitor/pkg/intelligence"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/metrics"
	"github.com/relaymetrics/relay-monitor/pkg/operator"
	"github.com/relaymetrics/relay-monitor/pkg/rarity"
	"github.com/relaymetrics/relay-monitor/pkg/reliability"
	"github.com/relaymetrics/relay-monitor/pkg/report"
	uberatomic "go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrContractViolation aborts a run. Nothing is published for that run.
	ErrContractViolation = errors.New("contract violation")
	ErrAlreadyRunning    = errors.New("a run is already in progress")
)

// Fetcher supplies the snapshot for one run.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*data.Snapshot, error)
}

// Publisher receives every completed report.
type Publisher interface {
	PutReport(ctx context.Context, r *report.Report) error
}

// History is the served-bandwidth cache refreshed from each snapshot.
type History interface {
	leaderboard.HistorySource
	Refresh(histories []data.RawBandwidth) int
}

type Opts struct {
	Network  string
	Analysis *config.AnalysisConfig

	Fetcher  Fetcher
	Resolver data.CountryResolver
	History  History
	// Store must accept the report for a run to succeed. Outputs are best
	// effort and only see reports the store accepted.
	Store   Publisher
	Outputs []Publisher

	Logger *zap.Logger
}

type Monitor struct {
	logger  *zap.Logger
	network string

	fetcher Fetcher
	history History
	store   Publisher
	outputs []Publisher

	normalizer   *data.Normalizer
	resolver     *operator.Resolver
	classifier   *rarity.Classifier
	reliability  *reliability.Analyzer
	intelligence *intelligence.Analyzer
	engine       *leaderboard.Engine

	running uberatomic.Bool
	latest  uberatomic.Value

	now   func() time.Time
	newID func() string
}

func New(opts *Opts) *Monitor {
	analysis := opts.Analysis
	if analysis == nil {
		analysis = config.DefaultAnalysisConfig()
	}
	tables := analysis.Tables
	if tables == nil {
		tables = config.DefaultTables()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		logger:  logger,
		network: opts.Network,
		fetcher: opts.Fetcher,
		history: opts.History,
		store:   opts.Store,
		outputs: opts.Outputs,

		normalizer: data.NewNormalizer(logger, opts.Resolver),
		resolver:   operator.NewResolver(logger),
		classifier: rarity.NewClassifier(logger, tables, analysis.RarityCutoff),
		reliability: reliability.NewAnalyzer(logger, reliability.Config{
			MinRelays:      analysis.ReliabilityMinRelays,
			OutlierSigma:   analysis.OutlierSigma,
			MatchTolerance: analysis.MatchTolerance,
		}),
		intelligence: intelligence.NewAnalyzer(logger, intelligence.Config{
			Bands: intelligence.Bands{
				Medium: analysis.HHIBands.Medium,
				High:   analysis.HHIBands.High,
			},
			Jurisdictions: analysis.Jurisdictions,
			SPOFShare:     analysis.SPOFShare,
		}),
		engine: leaderboard.NewEngine(logger, leaderboard.Config{
			Cutoff:      analysis.LeaderboardCutoff,
			EUCountries: tables.EU,
		}),

		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Running reports whether a run is in progress.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// Latest returns the last report this monitor published.
func (m *Monitor) Latest() (*report.Report, bool) {
	r, ok := m.latest.Load().(*report.Report)
	return r, ok && r != nil
}

// Run fetches a snapshot, analyzes it and publishes the report. Overlapping
// calls return ErrAlreadyRunning.
func (m *Monitor) Run(ctx context.Context) (*report.Report, error) {
	logger := m.logger.Sugar()

	if m.running.Swap(true) {
		metrics.Runs.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil, ErrAlreadyRunning
	}
	defer m.running.Store(false)

	r, err := m.run(ctx)
	if err != nil {
		metrics.Runs.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.Warnw("run failed", "network", m.network, "error", err)
		return nil, err
	}

	metrics.Runs.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.LastSuccess.Set(float64(r.GeneratedAt.Unix()))
	logger.Infow("published report", "id", r.ID, "relays", r.Relays, "operators", r.Operators, "rejected", r.RejectedRelays)
	return r, nil
}

func (m *Monitor) run(ctx context.Context) (*report.Report, error) {
	if m.fetcher == nil {
		return nil, fmt.Errorf("no snapshot fetcher configured")
	}

	timer := prometheus.NewTimer(metrics.FetchSnapshot)
	snapshot, err := m.fetcher.FetchSnapshot(ctx)
	timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("could not fetch snapshot: %v", err)
	}

	if m.history != nil {
		stored := m.history.Refresh(snapshot.Bandwidth)
		m.logger.Sugar().Debugw("refreshed bandwidth history", "relays", stored)
	}

	r, err := m.Process(snapshot)
	if err != nil {
		return nil, err
	}

	err = m.Publish(ctx, r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Process runs every analysis stage over the snapshot. It publishes nothing
// and returns either a complete report or an error.
func (m *Monitor) Process(snapshot *data.Snapshot) (*report.Report, error) {
	logger := m.logger.Sugar()

	var normalized *data.Result
	observe(metrics.StageNormalize, func() {
		normalized = m.normalizer.Normalize(snapshot)
	})
	metrics.RelaysNormalized.Set(float64(len(normalized.Records)))
	metrics.RelaysRejected.Set(float64(len(normalized.Rejections)))

	var resolution *operator.Resolution
	var err error
	observe(metrics.StageResolve, func() {
		resolution, err = m.resolver.Resolve(normalized.Records)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: could not resolve operators: %w", ErrContractViolation, err)
	}
	if resolution.TotalRelays() != len(normalized.Records) {
		return nil, fmt.Errorf("%w: resolved %d of %d relays", ErrContractViolation, resolution.TotalRelays(), len(normalized.Records))
	}
	metrics.OperatorsResolved.Set(float64(len(resolution.Operators)))

	// The three analyzers only read the shared records.
	var (
		wg                sync.WaitGroup
		rarityResult      *rarity.Result
		reliabilityResult *reliability.Result
		concentration     *intelligence.Result
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		observe(metrics.StageRarity, func() {
			rarityResult = m.classifier.Classify(normalized.Records)
		})
	}()
	go func() {
		defer wg.Done()
		observe(metrics.StageReliability, func() {
			reliabilityResult = m.reliability.Analyze(resolution, normalized.Records)
		})
	}()
	go func() {
		defer wg.Done()
		observe(metrics.StageIntelligence, func() {
			concentration = m.intelligence.Analyze(resolution)
		})
	}()
	wg.Wait()

	var leaderboards map[leaderboard.Category]*leaderboard.Leaderboard
	observe(metrics.StageScore, func() {
		leaderboards, err = m.engine.Score(&leaderboard.Inputs{
			Resolution:  resolution,
			Rarity:      rarityResult,
			Reliability: reliabilityResult,
			History:     m.historySource(),
			Now:         snapshot.FetchedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}

	r := &report.Report{
		ID:              m.newID(),
		Network:         m.network,
		GeneratedAt:     m.now().UTC(),
		SnapshotAt:      snapshot.FetchedAt.UTC(),
		Relays:          len(normalized.Records),
		RejectedRelays:  len(normalized.Rejections),
		Operators:       len(resolution.Operators),
		NoContactRelays: len(resolution.NoContact),
		Degradations:    normalized.Degradations,
		Leaderboards:    leaderboards,
		Metrics: &report.NetworkMetrics{
			Concentration: concentration,
			Uptime:        reliabilityResult.Network,
			Outliers:      reliabilityResult.Outliers,
			RarityTiers:   rarityResult.TiersByCountry(),
			Countries:     rarityResult.Countries,
		},
	}

	logger.Debugw("processed snapshot", "id", r.ID, "relays", r.Relays, "operators", r.Operators, "leaderboards", len(leaderboards))
	return r, nil
}

// Publish hands the report to the store, then to every output.
func (m *Monitor) Publish(ctx context.Context, r *report.Report) error {
	logger := m.logger.Sugar()

	if m.store != nil {
		var err error
		observe(metrics.StagePublish, func() {
			err = m.store.PutReport(ctx, r)
		})
		if err != nil {
			return fmt.Errorf("could not store report %s: %v", r.ID, err)
		}
	}
	m.latest.Store(r)

	for _, output := range m.outputs {
		err := output.PutReport(ctx, r)
		if err != nil {
			logger.Warnw("could not write report to output", "id", r.ID, "error", err)
		}
	}
	return nil
}

func (m *Monitor) historySource() leaderboard.HistorySource {
	if m.history == nil {
		return nil
	}
	return m.history
}

func observe(stage string, f func()) {
	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues(stage))
	defer timer.ObserveDuration()
	f()
}
