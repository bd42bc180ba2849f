package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RawRelay mirrors one relay entry of the upstream details document. Pointer
// fields distinguish an absent value from a zero one.
type RawRelay struct {
	Fingerprint             *string     `json:"fingerprint"`
	Nickname                string      `json:"nickname"`
	Flags                   []string    `json:"flags"`
	ObservedBandwidth       *int64      `json:"observed_bandwidth"`
	AdvertisedBandwidth     *int64      `json:"advertised_bandwidth"`
	ConsensusWeightFraction *float64    `json:"consensus_weight_fraction"`
	Country                 *string     `json:"country"`
	AS                      *string     `json:"as"`
	ASNumber                *FlexString `json:"as_number"`
	Platform                *string     `json:"platform"`
	Contact                 *string     `json:"contact"`
	FirstSeen               string      `json:"first_seen"`
	LastSeen                string      `json:"last_seen"`
	ORAddresses             []string    `json:"or_addresses"`
}

// RawGraphHistory is one period of an upstream history graph. Values are on the
// document's native scale; null entries are gaps.
type RawGraphHistory struct {
	First    string   `json:"first"`
	Last     string   `json:"last"`
	Interval int      `json:"interval"`
	Factor   float64  `json:"factor"`
	Count    int      `json:"count"`
	Values   []*int64 `json:"values"`
}

// RawUptime mirrors one relay entry of the upstream uptime document.
type RawUptime struct {
	Fingerprint string                                `json:"fingerprint"`
	Uptime      map[string]RawGraphHistory            `json:"uptime"`
	Flags       map[string]map[string]RawGraphHistory `json:"flags"`
}

// RawBandwidth mirrors one relay entry of the upstream bandwidth document.
type RawBandwidth struct {
	Fingerprint  string                     `json:"fingerprint"`
	WriteHistory map[string]RawGraphHistory `json:"write_history"`
}

// Snapshot is everything fetched for one cycle.
type Snapshot struct {
	FetchedAt time.Time      `json:"fetched_at"`
	Relays    []RawRelay     `json:"relays"`
	Uptime    []RawUptime    `json:"uptime"`
	Bandwidth []RawBandwidth `json:"bandwidth"`
}

// FlexString accepts either a JSON string or a JSON number.
type FlexString string

func (s *FlexString) UnmarshalJSON(input []byte) error {
	input = bytes.TrimSpace(input)
	if len(input) == 0 || string(input) == "null" {
		*s = ""
		return nil
	}
	if input[0] == '"' {
		var value string
		if err := json.Unmarshal(input, &value); err != nil {
			return err
		}
		*s = FlexString(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(input, &number); err != nil {
		return fmt.Errorf("expected string or number: %v", err)
	}
	*s = FlexString(number.String())
	return nil
}
