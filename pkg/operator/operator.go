package operator

import (
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/types"
)

// Operator groups the relays that share one normalized contact string.
type Operator struct {
	ID      types.OperatorID `json:"id"`
	Contact string           `json:"contact"`
	// Domain is set only when the contact carries a recognized proof format.
	Domain types.Optional[string] `json:"domain"`

	Relays []*types.RelayRecord `json:"-"`
	Totals *Totals              `json:"totals"`
}

func (o *Operator) Authenticated() bool {
	return o.Domain.Valid()
}

func (o *Operator) RelayCount() int {
	return len(o.Relays)
}

// Totals are the per-operator aggregates every downstream stage reads.
type Totals struct {
	ObservedBandwidth    uint64  `json:"observed_bandwidth"`
	ConsensusWeight      float64 `json:"consensus_weight"`
	ExitConsensusWeight  float64 `json:"exit_consensus_weight"`
	GuardConsensusWeight float64 `json:"guard_consensus_weight"`

	FlagCounts map[types.Flag]int `json:"flag_counts"`

	// Only known values are collected; unknown buckets are skipped.
	Countries map[types.Country]int  `json:"countries"`
	Platforms map[types.Platform]int `json:"platforms"`
	ASes      map[types.ASN]int      `json:"ases"`

	IPv4Addresses map[string]struct{} `json:"-"`
	IPv6Addresses map[string]struct{} `json:"-"`

	NonLinuxRelays int `json:"non_linux_relays"`

	FirstSeen types.Optional[time.Time] `json:"first_seen"`
}

func newTotals() *Totals {
	return &Totals{
		FlagCounts:    make(map[types.Flag]int),
		Countries:     make(map[types.Country]int),
		Platforms:     make(map[types.Platform]int),
		ASes:          make(map[types.ASN]int),
		IPv4Addresses: make(map[string]struct{}),
		IPv6Addresses: make(map[string]struct{}),
		FirstSeen:     types.None[time.Time](),
	}
}

// Aggregate computes totals over relays.
func Aggregate(relays []*types.RelayRecord) (*Totals, error) {
	totals := newTotals()

	var weight, exitWeight, guardWeight Weight
	for _, relay := range relays {
		totals.ObservedBandwidth += relay.ObservedBandwidth

		if err := weight.Add(relay.ConsensusWeight); err != nil {
			return nil, err
		}
		if relay.HasFlag(types.FlagExit) {
			if err := exitWeight.Add(relay.ConsensusWeight); err != nil {
				return nil, err
			}
		}
		if relay.HasFlag(types.FlagGuard) {
			if err := guardWeight.Add(relay.ConsensusWeight); err != nil {
				return nil, err
			}
		}

		for flag := range relay.Flags {
			totals.FlagCounts[flag]++
		}
		if relay.Country.Known() {
			totals.Countries[relay.Country]++
		}
		if relay.Platform != types.UnknownPlatform {
			totals.Platforms[relay.Platform]++
			if relay.Platform != "Linux" {
				totals.NonLinuxRelays++
			}
		}
		if relay.AS.Known() {
			totals.ASes[relay.AS]++
		}
		for _, address := range relay.IPv4Addresses {
			totals.IPv4Addresses[address] = struct{}{}
		}
		for _, address := range relay.IPv6Addresses {
			totals.IPv6Addresses[address] = struct{}{}
		}

		if firstSeen, ok := relay.FirstSeen.Get(); ok {
			earliest, set := totals.FirstSeen.Get()
			if !set || firstSeen.Before(earliest) {
				totals.FirstSeen = types.Some(firstSeen)
			}
		}
	}

	totals.ConsensusWeight = weight.Float64()
	totals.ExitConsensusWeight = exitWeight.Float64()
	totals.GuardConsensusWeight = guardWeight.Float64()
	return totals, nil
}
