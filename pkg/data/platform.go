package data

import (
	"strings"

	"github.com/relaymetrics/relay-monitor/pkg/types"
)

var platformFamilies = map[string]types.Platform{
	"linux":        "Linux",
	"freebsd":      "FreeBSD",
	"openbsd":      "OpenBSD",
	"netbsd":       "NetBSD",
	"dragonfly":    "DragonFly",
	"windows":      "Windows",
	"darwin":       "macOS",
	"macos":        "macOS",
	"sunos":        "SunOS",
	"solaris":      "SunOS",
	"gnu/kfreebsd": "FreeBSD",
}

// NormalizePlatform reduces a version banner such as "Tor 0.4.8.9 on Linux" to
// its operating system family.
func NormalizePlatform(platform string) types.Platform {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return types.UnknownPlatform
	}
	os := platform
	if idx := strings.LastIndex(strings.ToLower(platform), " on "); idx >= 0 {
		os = platform[idx+len(" on "):]
	}
	fields := strings.Fields(os)
	if len(fields) == 0 {
		return types.UnknownPlatform
	}
	if family, ok := platformFamilies[strings.ToLower(fields[0])]; ok {
		return family
	}
	return fields[0]
}

// IsLinux reports whether the platform belongs to the Linux family.
func IsLinux(platform types.Platform) bool {
	return platform == "Linux"
}
