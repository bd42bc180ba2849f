package types

import "time"

// RelayRecord is the validated snapshot of one relay for one fetch cycle. It is
// built once by the normalizer and shared by pointer; nothing downstream
// mutates it.
type RelayRecord struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Nickname    string      `json:"nickname"`
	Flags       FlagSet     `json:"-"`

	ObservedBandwidth   uint64  `json:"observed_bandwidth"`
	AdvertisedBandwidth uint64  `json:"advertised_bandwidth"`
	ConsensusWeight     float64 `json:"consensus_weight_fraction"`

	Country  Country  `json:"country"`
	AS       ASN      `json:"as"`
	Platform Platform `json:"platform"`
	Contact  string   `json:"contact"`

	IPv4Addresses []string `json:"ipv4_addresses,omitempty"`
	IPv6Addresses []string `json:"ipv6_addresses,omitempty"`

	FirstSeen Optional[time.Time] `json:"first_seen"`
	LastSeen  Optional[time.Time] `json:"last_seen"`

	Uptime UptimePeriodSeries `json:"uptime"`
}

func (r *RelayRecord) HasFlag(flag Flag) bool {
	return r.Flags.Has(flag)
}

// UptimePeriodSeries holds normalized (0–100) uptime per period for a relay,
// overall and per flag. A period without valid samples is absent.
type UptimePeriodSeries struct {
	Overall map[Period]Percent          `json:"overall"`
	ByFlag  map[Flag]map[Period]Percent `json:"by_flag"`
}

func NewUptimePeriodSeries() UptimePeriodSeries {
	return UptimePeriodSeries{
		Overall: make(map[Period]Percent),
		ByFlag:  make(map[Flag]map[Period]Percent),
	}
}

// Get returns the overall uptime for the period.
func (s UptimePeriodSeries) Get(period Period) Percent {
	if s.Overall == nil {
		return None[float64]()
	}
	return s.Overall[period]
}

// GetFlag returns the flag-specific uptime for the period.
func (s UptimePeriodSeries) GetFlag(flag Flag, period Period) Percent {
	series, ok := s.ByFlag[flag]
	if !ok {
		return None[float64]()
	}
	return series[period]
}

// HasData reports whether any overall period carries a valid value.
func (s UptimePeriodSeries) HasData() bool {
	for _, value := range s.Overall {
		if value.Valid() {
			return true
		}
	}
	return false
}

// NormalizeUptime maps a raw 0–999 sample onto 0–100.
func NormalizeUptime(raw float64) float64 {
	return raw / RawUptimeMax * 100
}
