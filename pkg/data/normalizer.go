package data

import (
	"math"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

// CountryResolver maps an IP address to a country. It backs up relays whose
// document carries no usable country code.
type CountryResolver interface {
	Country(ip string) (types.Country, bool)
}

type RejectionReason string

const (
	ReasonMissingFingerprint   RejectionReason = "missing_fingerprint"
	ReasonInvalidFingerprint   RejectionReason = "invalid_fingerprint"
	ReasonDuplicateFingerprint RejectionReason = "duplicate_fingerprint"
)

// Rejection records a relay dropped from every statistic.
type Rejection struct {
	Index       int             `json:"index"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Reason      RejectionReason `json:"reason"`
}

// Degradation kinds counted for relays that were kept with partial data.
const (
	DegradedBandwidth       = "bandwidth"
	DegradedConsensusWeight = "consensus_weight"
	DegradedCountry         = "country"
	DegradedAS              = "as"
	DegradedContact         = "contact"
	DegradedFirstSeen       = "first_seen"
	DegradedUptime          = "uptime"
	DegradedUptimeSamples   = "uptime_samples"
)

type Result struct {
	Records      []*types.RelayRecord `json:"-"`
	Rejections   []Rejection          `json:"rejections"`
	Degradations map[string]int       `json:"degradations"`
}

func (r *Result) degrade(kind string) {
	r.Degradations[kind]++
}

type Normalizer struct {
	logger   *zap.Logger
	resolver CountryResolver
}

// NewNormalizer returns a normalizer. resolver may be nil.
func NewNormalizer(logger *zap.Logger, resolver CountryResolver) *Normalizer {
	return &Normalizer{
		logger:   logger,
		resolver: resolver,
	}
}

// Normalize validates every relay of the snapshot. Records come back sorted by
// fingerprint so downstream ordering never depends on upstream document order.
func (n *Normalizer) Normalize(snapshot *Snapshot) *Result {
	logger := n.logger.Sugar()

	result := &Result{
		Records:      make([]*types.RelayRecord, 0, len(snapshot.Relays)),
		Rejections:   make([]Rejection, 0),
		Degradations: make(map[string]int),
	}

	uptimes := make(map[types.Fingerprint]*RawUptime, len(snapshot.Uptime))
	for i := range snapshot.Uptime {
		fingerprint, err := types.FingerprintFromString(snapshot.Uptime[i].Fingerprint)
		if err != nil {
			continue
		}
		uptimes[fingerprint] = &snapshot.Uptime[i]
	}

	seen := make(map[types.Fingerprint]struct{}, len(snapshot.Relays))
	for i := range snapshot.Relays {
		raw := &snapshot.Relays[i]

		record, rejection := n.normalizeRelay(i, raw, uptimes, result)
		if rejection != nil {
			logger.Warnw("dropping relay", "index", rejection.Index, "fingerprint", rejection.Fingerprint, "reason", rejection.Reason)
			result.Rejections = append(result.Rejections, *rejection)
			continue
		}
		if _, ok := seen[record.Fingerprint]; ok {
			rejection := Rejection{Index: i, Fingerprint: record.Fingerprint, Reason: ReasonDuplicateFingerprint}
			logger.Warnw("dropping relay", "index", i, "fingerprint", record.Fingerprint, "reason", rejection.Reason)
			result.Rejections = append(result.Rejections, rejection)
			continue
		}
		seen[record.Fingerprint] = struct{}{}
		result.Records = append(result.Records, record)
	}

	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Fingerprint < result.Records[j].Fingerprint
	})

	logger.Infow("normalized relays", "kept", len(result.Records), "rejected", len(result.Rejections), "degradations", result.Degradations)
	return result
}

func (n *Normalizer) normalizeRelay(index int, raw *RawRelay, uptimes map[types.Fingerprint]*RawUptime, result *Result) (*types.RelayRecord, *Rejection) {
	if raw.Fingerprint == nil || strings.TrimSpace(*raw.Fingerprint) == "" {
		return nil, &Rejection{Index: index, Reason: ReasonMissingFingerprint}
	}
	fingerprint, err := types.FingerprintFromString(*raw.Fingerprint)
	if err != nil {
		return nil, &Rejection{Index: index, Fingerprint: *raw.Fingerprint, Reason: ReasonInvalidFingerprint}
	}

	record := &types.RelayRecord{
		Fingerprint: fingerprint,
		Nickname:    raw.Nickname,
		Flags:       types.NewFlagSet(raw.Flags...),
		Platform:    NormalizePlatform(deref(raw.Platform)),
		Contact:     strings.TrimSpace(deref(raw.Contact)),
		FirstSeen:   types.None[time.Time](),
		LastSeen:    types.None[time.Time](),
	}

	var ok bool
	record.ObservedBandwidth, ok = bandwidth(raw.ObservedBandwidth)
	if !ok {
		result.degrade(DegradedBandwidth)
	}
	record.AdvertisedBandwidth, _ = bandwidth(raw.AdvertisedBandwidth)

	record.ConsensusWeight, ok = weightFraction(raw.ConsensusWeightFraction)
	if !ok {
		result.degrade(DegradedConsensusWeight)
	}

	record.IPv4Addresses, record.IPv6Addresses = splitAddresses(raw.ORAddresses)

	record.Country, ok = types.CountryFromString(deref(raw.Country))
	if !ok {
		record.Country, ok = n.resolveCountry(record.IPv4Addresses)
		if !ok {
			result.degrade(DegradedCountry)
		}
	}

	asLabel := deref(raw.AS)
	if asLabel == "" && raw.ASNumber != nil {
		asLabel = string(*raw.ASNumber)
	}
	record.AS, ok = types.ASNFromString(asLabel)
	if !ok {
		result.degrade(DegradedAS)
	}

	if record.Contact == "" {
		result.degrade(DegradedContact)
	}

	if firstSeen, err := types.TimeFromString(raw.FirstSeen); err == nil {
		record.FirstSeen = types.Some(firstSeen)
	} else {
		result.degrade(DegradedFirstSeen)
	}
	if lastSeen, err := types.TimeFromString(raw.LastSeen); err == nil {
		record.LastSeen = types.Some(lastSeen)
	}

	record.Uptime = normalizeUptime(uptimes[fingerprint], result)
	if !record.Uptime.HasData() {
		result.degrade(DegradedUptime)
	}

	n.logger.Debug("normalized relay", zap.String("fingerprint", fingerprint), zap.String("country", string(record.Country)))
	return record, nil
}

func (n *Normalizer) resolveCountry(addresses []string) (types.Country, bool) {
	if n.resolver == nil {
		return types.UnknownCountry, false
	}
	for _, address := range addresses {
		country, ok := n.resolver.Country(address)
		if ok {
			return country, true
		}
	}
	return types.UnknownCountry, false
}

func normalizeUptime(raw *RawUptime, result *Result) types.UptimePeriodSeries {
	series := types.NewUptimePeriodSeries()
	if raw == nil {
		return series
	}
	for period, history := range raw.Uptime {
		series.Overall[period] = PeriodUptime(history, result)
	}
	for flag, histories := range raw.Flags {
		byPeriod := make(map[types.Period]types.Percent, len(histories))
		for period, history := range histories {
			byPeriod[period] = PeriodUptime(history, result)
		}
		series.ByFlag[flag] = byPeriod
	}
	return series
}

// PeriodUptime averages the valid raw samples of one period and maps the mean
// onto 0–100. Samples outside [0, 999] are dropped one by one; a period left
// without samples is absent.
func PeriodUptime(history RawGraphHistory, result *Result) types.Percent {
	var sum float64
	var count int
	for _, value := range history.Values {
		if value == nil {
			continue
		}
		if *value < 0 || *value > types.RawUptimeMax {
			if result != nil {
				result.degrade(DegradedUptimeSamples)
			}
			continue
		}
		sum += float64(*value)
		count++
	}
	if count == 0 {
		return types.None[float64]()
	}
	return types.Some(types.NormalizeUptime(sum / float64(count)))
}

// AverageBandwidth returns the mean of the valid samples of a bandwidth history
// in bytes per second.
func AverageBandwidth(history RawGraphHistory) types.Optional[float64] {
	factor := history.Factor
	if factor <= 0 || math.IsNaN(factor) {
		return types.None[float64]()
	}
	var sum float64
	var count int
	for _, value := range history.Values {
		if value == nil || *value < 0 {
			continue
		}
		sum += float64(*value)
		count++
	}
	if count == 0 {
		return types.None[float64]()
	}
	return types.Some(sum / float64(count) * factor)
}

func bandwidth(value *int64) (uint64, bool) {
	if value == nil || *value < 0 {
		return 0, false
	}
	return uint64(*value), *value > 0
}

func weightFraction(value *float64) (float64, bool) {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) || *value < 0 || *value > 1 {
		return 0, false
	}
	return *value, *value > 0
}

func splitAddresses(addresses []string) (ipv4 []string, ipv6 []string) {
	for _, address := range addresses {
		host, _, err := net.SplitHostPort(strings.TrimSpace(address))
		if err != nil {
			host = strings.Trim(strings.TrimSpace(address), "[]")
		}
		ip := net.ParseIP(host)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			ipv4 = append(ipv4, ip.String())
		} else {
			ipv6 = append(ipv6, ip.String())
		}
	}
	return ipv4, ipv6
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
