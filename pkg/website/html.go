package website

import (
	_ "embed"
	"html/template"
	"unicode/utf8"

	"github.com/Masterminds/sprig"
	"github.com/relaymetrics/relay-monitor/pkg/reporter"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// Printer for pretty printing numbers
	printer = message.NewPrinter(language.English)

	// Caser is used for casing strings
	caser = cases.Title(language.English)
)

type StatusHTMLData struct { //nolint:musttag
	Network string

	Overview *reporter.Overview
	// Error is shown instead of the overview when no report is available.
	Error string

	ShowConfigDetails bool
	LinkAPI           string
	PageSize          int
}

func prettyInt(i int) string {
	return printer.Sprintf("%d", i)
}

func caseIt(s string) string {
	return caser.String(s)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= 12 {
		return s
	}
	runes := []rune(s)
	return string(runes[:5]) + "..." + string(runes[len(runes)-4:])
}

func pct(p types.Percent) string {
	value, ok := p.Get()
	if !ok {
		return "n/a"
	}
	return printer.Sprintf("%.1f%%", value)
}

func share(f float64) string {
	return printer.Sprintf("%.2f%%", f*100)
}

func optionalShare(o types.Optional[float64]) string {
	value, ok := o.Get()
	if !ok {
		return "n/a"
	}
	return printer.Sprintf("%.3f", value)
}

var funcMap = template.FuncMap{
	"prettyInt":     prettyInt,
	"caseIt":        caseIt,
	"truncate":      truncate,
	"pct":           pct,
	"share":         share,
	"optionalShare": optionalShare,
}

//go:embed website.html
var htmlContent string

func ParseIndexTemplate() (*template.Template, error) {
	return template.New("index").Funcs(funcMap).Funcs(sprig.FuncMap()).Parse(htmlContent)
}
