package store

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/relaymetrics/relay-monitor/pkg/data"
	"github.com/relaymetrics/relay-monitor/pkg/types"
)

type historyEntry struct {
	served  float64
	expires time.Time
}

// HistoryCache holds the 6-month average served bandwidth per relay. Entries
// older than the expiry read as absent.
type HistoryCache struct {
	entries *lru.Cache
	expiry  time.Duration
	now     func() time.Time
}

func NewHistoryCache(size int, expiry time.Duration) (*HistoryCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &HistoryCache{
		entries: entries,
		expiry:  expiry,
		now:     time.Now,
	}, nil
}

func (c *HistoryCache) Put(fingerprint types.Fingerprint, served float64) {
	c.entries.Add(fingerprint, historyEntry{
		served:  served,
		expires: c.now().Add(c.expiry),
	})
}

// ServedBandwidth implements leaderboard.HistorySource.
func (c *HistoryCache) ServedBandwidth(fingerprint types.Fingerprint) (float64, bool) {
	value, ok := c.entries.Get(fingerprint)
	if !ok {
		return 0, false
	}
	entry := value.(historyEntry)
	if !c.now().Before(entry.expires) {
		c.entries.Remove(fingerprint)
		return 0, false
	}
	return entry.served, true
}

// Refresh stores the 6-month write history average of every document that has
// one and returns how many were stored.
func (c *HistoryCache) Refresh(histories []data.RawBandwidth) int {
	stored := 0
	for _, history := range histories {
		fingerprint, err := types.FingerprintFromString(history.Fingerprint)
		if err != nil {
			continue
		}
		graph, ok := history.WriteHistory[types.Period6Months]
		if !ok {
			continue
		}
		served, ok := data.AverageBandwidth(graph).Get()
		if !ok {
			continue
		}
		c.Put(fingerprint, served)
		stored++
	}
	return stored
}

func (c *HistoryCache) Len() int {
	return c.entries.Len()
}
