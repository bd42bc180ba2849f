package types

import (
	"fmt"
	"strings"
)

type (
	Fingerprint = string
	OperatorID  = string
	Flag        = string
	Period      = string
	Platform    = string
)

// Country is a lowercase ISO 3166-1 alpha-2 code, or UnknownCountry.
type Country string

// ASN is an autonomous system label of the form "AS1234", or UnknownASN.
type ASN string

const (
	UnknownCountry Country = "unknown"
	UnknownASN     ASN     = "unknown"
	UnknownPlatform        = "unknown"
)

func (c Country) Known() bool {
	return c != "" && c != UnknownCountry
}

func (a ASN) Known() bool {
	return a != "" && a != UnknownASN
}

const (
	FlagAuthority  Flag = "Authority"
	FlagBadExit    Flag = "BadExit"
	FlagExit       Flag = "Exit"
	FlagFast       Flag = "Fast"
	FlagGuard      Flag = "Guard"
	FlagHSDir      Flag = "HSDir"
	FlagMiddleOnly Flag = "MiddleOnly"
	FlagRunning    Flag = "Running"
	FlagStable     Flag = "Stable"
	FlagStaleDesc  Flag = "StaleDesc"
	FlagSybil      Flag = "Sybil"
	FlagV2Dir      Flag = "V2Dir"
	FlagValid      Flag = "Valid"
)

// Uptime history periods, keyed the way the upstream documents key them.
const (
	Period1Month  Period = "1_month"
	Period6Months Period = "6_months"
	Period1Year   Period = "1_year"
	Period5Years  Period = "5_years"
)

// Periods lists the supported uptime periods from shortest to longest.
func Periods() []Period {
	return []Period{Period1Month, Period6Months, Period1Year, Period5Years}
}

// FlagDisplayPriority is the order in which a relay's held flags select the
// flag-specific uptime series shown next to its overall uptime.
func FlagDisplayPriority() []Flag {
	return []Flag{FlagExit, FlagGuard, FlagFast, FlagRunning}
}

const (
	// RawUptimeMax is the top of the network-native uptime sample scale.
	RawUptimeMax = 999
	// FingerprintLength is the number of hex characters in a relay fingerprint.
	FingerprintLength = 40
)

var (
	ErrLength      = fmt.Errorf("incorrect length")
	ErrFingerprint = fmt.Errorf("invalid fingerprint")
)

type FlagSet map[Flag]struct{}

func NewFlagSet(flags ...Flag) FlagSet {
	set := make(FlagSet, len(flags))
	for _, flag := range flags {
		set[flag] = struct{}{}
	}
	return set
}

func (s FlagSet) Has(flag Flag) bool {
	_, ok := s[flag]
	return ok
}

func (s FlagSet) String() string {
	flags := make([]string, 0, len(s))
	for _, flag := range allFlags {
		if s.Has(flag) {
			flags = append(flags, flag)
		}
	}
	return strings.Join(flags, ",")
}

var allFlags = []Flag{
	FlagAuthority, FlagBadExit, FlagExit, FlagFast, FlagGuard, FlagHSDir, FlagMiddleOnly,
	FlagRunning, FlagStable, FlagStaleDesc, FlagSybil, FlagV2Dir, FlagValid,
}
