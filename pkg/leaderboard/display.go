package leaderboard

import (
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/relaymetrics/relay-monitor/pkg/operator"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Printer for pretty printing numbers
var printer = message.NewPrinter(language.English)

const maxNameLength = 40

// Display holds the fields a renderer shows next to an entry.
type Display struct {
	Name          string                    `json:"name"`
	Domain        types.Optional[string]    `json:"domain"`
	Authenticated bool                      `json:"authenticated"`
	Relays        int                       `json:"relays"`
	Bandwidth     string                    `json:"bandwidth"`
	Score         string                    `json:"score"`
	FirstSeen     types.Optional[time.Time] `json:"first_seen"`
}

func newDisplay(op *operator.Operator, format Format, score float64) Display {
	return Display{
		Name:          DisplayName(op),
		Domain:        op.Domain,
		Authenticated: op.Authenticated(),
		Relays:        op.RelayCount(),
		Bandwidth:     FormatBandwidthRate(op.Totals.ObservedBandwidth),
		Score:         FormatScore(format, score),
		FirstSeen:     op.Totals.FirstSeen,
	}
}

// DisplayName is the AROI domain for authenticated operators and a shortened
// contact string otherwise.
func DisplayName(op *operator.Operator) string {
	if domain, ok := op.Domain.Get(); ok {
		return domain
	}
	if utf8.RuneCountInString(op.Contact) <= maxNameLength {
		return op.Contact
	}
	runes := []rune(op.Contact)
	return string(runes[:maxNameLength]) + "..."
}

func FormatBandwidthRate(bytesPerSecond uint64) string {
	return humanize.Bytes(bytesPerSecond) + "/s"
}

func FormatScore(format Format, score float64) string {
	switch format {
	case FormatBandwidth:
		return FormatBandwidthRate(uint64(score))
	case FormatFraction:
		return printer.Sprintf("%.2f%%", score*100)
	case FormatPercent:
		return printer.Sprintf("%.2f%%", score)
	case FormatPoints:
		return printer.Sprintf("%.1f", score)
	default:
		return printer.Sprintf("%d", int64(score))
	}
}
