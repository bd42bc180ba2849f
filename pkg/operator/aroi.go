package operator

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	ciissVersionPattern = regexp.MustCompile(`(?i)\bciissversion:\s*2\b`)
	proofPattern        = regexp.MustCompile(`(?i)\bproof:\s*(uri-rsa|dns-rsa)\b`)
	urlPattern          = regexp.MustCompile(`(?i)\burl:\s*(\S+)`)
)

// ExtractDomain returns the operator domain asserted by an AROI contact string
// (ContactInfo version 2 with a uri-rsa or dns-rsa proof). ok is false when the
// contact does not follow the format or names no registrable domain.
func ExtractDomain(contact string) (domain string, ok bool) {
	if !ciissVersionPattern.MatchString(contact) || !proofPattern.MatchString(contact) {
		return "", false
	}
	match := urlPattern.FindStringSubmatch(contact)
	if match == nil {
		return "", false
	}
	return normalizeDomain(match[1])
}

func normalizeDomain(raw string) (string, bool) {
	host := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+len("://"):]
	}
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.Trim(host, ".")
	if host == "" || strings.ContainsAny(host, "@ \t") {
		return "", false
	}

	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return "", false
	}
	if _, icann := publicsuffix.PublicSuffix(host); !icann {
		return "", false
	}
	return host, true
}
