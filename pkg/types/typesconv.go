package types

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp layout used by the upstream relay documents.
const TimeLayout = "2006-01-02 15:04:05"

// FingerprintFromString validates and upper-cases a relay fingerprint.
func FingerprintFromString(s string) (Fingerprint, error) {
	s = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$")))
	if len(s) != FingerprintLength {
		return "", ErrLength
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", ErrFingerprint
	}
	return s, nil
}

// CountryFromString returns a lowercase two-letter country code, or
// UnknownCountry with ok=false when the input is missing or malformed.
func CountryFromString(s string) (Country, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return UnknownCountry, false
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return UnknownCountry, false
		}
	}
	return Country(s), true
}

// ASNFromString accepts "AS1234", "as1234" or "1234".
func ASNFromString(s string) (ASN, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[:2], "AS") {
		s = s[2:]
	}
	if s == "" {
		return UnknownASN, false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return UnknownASN, false
	}
	return ASN(fmt.Sprintf("AS%d", n)), true
}

// TimeFromString parses an upstream timestamp as UTC.
func TimeFromString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
