package leaderboard

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/operator"
	"github.com/relaymetrics/relay-monitor/pkg/rarity"
	"github.com/relaymetrics/relay-monitor/pkg/reliability"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

var ErrInvalidScore = errors.New("invalid score")

// HistorySource provides cached served-bandwidth history per relay. Entries
// that are missing or expired read as absent.
type HistorySource interface {
	ServedBandwidth(fingerprint types.Fingerprint) (float64, bool)
}

// Inputs are the outputs of the earlier stages of one cycle. Now is the
// snapshot time, so that scoring the same snapshot twice yields the same
// veteran scores.
type Inputs struct {
	Resolution  *operator.Resolution
	Rarity      *rarity.Result
	Reliability *reliability.Result
	History     HistorySource
	Now         time.Time

	euCountries map[types.Country]struct{}
}

func (in *Inputs) nonEURelays(op *operator.Operator) int {
	count := 0
	for _, relay := range op.Relays {
		if !relay.Country.Known() {
			continue
		}
		if _, ok := in.euCountries[relay.Country]; !ok {
			count++
		}
	}
	return count
}

type Entry struct {
	OperatorID types.OperatorID `json:"operator_id"`
	Category   Category         `json:"category"`
	Score      float64          `json:"score"`
	// Rank is 1-based within the cutoff and 0 for overflow entries.
	Rank     int     `json:"rank"`
	TieBreak string  `json:"tie_break"`
	Display  Display `json:"display"`
}

type Leaderboard struct {
	Category Category `json:"category"`
	Family   Family   `json:"family"`
	Title    string   `json:"title"`
	Entries  []*Entry `json:"entries"`
	// Overflow holds eligible entries past the cutoff, in order and unranked.
	Overflow []*Entry `json:"overflow"`
	// Total is the number of eligible entries. Additive categories exclude
	// operators with a zero score.
	Total int `json:"total"`
}

// Page returns up to limit entries starting at offset across the ranked and
// overflow entries.
func (l *Leaderboard) Page(offset, limit int) []*Entry {
	all := make([]*Entry, 0, len(l.Entries)+len(l.Overflow))
	all = append(all, l.Entries...)
	all = append(all, l.Overflow...)
	if offset < 0 || offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

type Config struct {
	Cutoff      int
	EUCountries []string
}

type Engine struct {
	logger      *zap.Logger
	config      Config
	definitions []Definition
	euCountries map[types.Country]struct{}
}

func NewEngine(logger *zap.Logger, config Config) *Engine {
	eu := make(map[types.Country]struct{}, len(config.EUCountries))
	for _, country := range config.EUCountries {
		eu[types.Country(country)] = struct{}{}
	}
	return &Engine{
		logger:      logger,
		config:      config,
		definitions: Definitions(),
		euCountries: eu,
	}
}

func (e *Engine) Definitions() []Definition {
	return e.definitions
}

// Score evaluates every category concurrently and ranks each one. Either all
// leaderboards are returned or an error.
func (e *Engine) Score(in *Inputs) (map[Category]*Leaderboard, error) {
	logger := e.logger.Sugar()

	in.euCountries = e.euCountries
	results := make([]*Leaderboard, len(e.definitions))
	errs := make([]error, len(e.definitions))

	var wg sync.WaitGroup
	for i := range e.definitions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.scoreCategory(in, e.definitions[i])
		}(i)
	}
	wg.Wait()

	leaderboards := make(map[Category]*Leaderboard, len(e.definitions))
	for i, definition := range e.definitions {
		if errs[i] != nil {
			return nil, fmt.Errorf("could not score %s: %w", definition.Category, errs[i])
		}
		leaderboards[definition.Category] = results[i]
	}

	logger.Debugw("scored leaderboards", "categories", len(leaderboards), "operators", len(in.Resolution.Operators))
	return leaderboards, nil
}

func (e *Engine) scoreCategory(in *Inputs, definition Definition) (*Leaderboard, error) {
	var entries []*Entry
	for _, op := range in.Resolution.Operators {
		score, ok := definition.score(in, op)
		if !ok {
			continue
		}
		if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
			return nil, fmt.Errorf("%w: operator %s scored %v", ErrInvalidScore, op.ID, score)
		}
		entries = append(entries, &Entry{
			OperatorID: op.ID,
			Category:   definition.Category,
			Score:      score,
			TieBreak:   definition.tieBreak(op),
			Display:    newDisplay(op, definition.Format, score),
		})
	}

	leaderboard := Rank(entries, e.config.Cutoff)
	leaderboard.Category = definition.Category
	leaderboard.Family = definition.Family
	leaderboard.Title = definition.Title
	return leaderboard, nil
}

// Rank orders entries by score descending, tie-break key ascending and
// operator id ascending, then assigns ranks 1..cutoff. Remaining entries go to
// Overflow unranked.
func Rank(entries []*Entry, cutoff int) *Leaderboard {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TieBreak != b.TieBreak {
			return a.TieBreak < b.TieBreak
		}
		return a.OperatorID < b.OperatorID
	})

	leaderboard := &Leaderboard{
		Entries: entries,
		Total:   len(entries),
	}
	if cutoff > 0 && len(entries) > cutoff {
		leaderboard.Entries = entries[:cutoff]
		leaderboard.Overflow = entries[cutoff:]
	}
	for i, entry := range leaderboard.Entries {
		entry.Rank = i + 1
	}
	for _, entry := range leaderboard.Overflow {
		entry.Rank = 0
	}
	return leaderboard
}

// missingFirstSeen sorts after every formatted timestamp.
const missingFirstSeen = "~"

func earlierFirstSeen(op *operator.Operator) string {
	firstSeen, ok := op.Totals.FirstSeen.Get()
	if !ok {
		return missingFirstSeen
	}
	return firstSeen.UTC().Format(time.RFC3339)
}

func higherRelayCount(op *operator.Operator) string {
	return fmt.Sprintf("%010d", math.MaxInt32-op.RelayCount())
}
