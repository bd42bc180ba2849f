package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/relaymetrics/relay-monitor/pkg/types"
)

// Database resolves relay addresses to countries from a GeoLite2/GeoIP2
// country database.
type Database struct {
	reader *geoip2.Reader
}

func Open(path string) (*Database, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Database{reader: r}, nil
}

// Country implements data.CountryResolver.
func (d *Database) Country(ipStr string) (types.Country, bool) {
	if d == nil || d.reader == nil {
		return types.UnknownCountry, false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return types.UnknownCountry, false
	}

	record, err := d.reader.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return types.UnknownCountry, false
	}

	return types.CountryFromString(record.Country.IsoCode)
}

func (d *Database) Close() error {
	if d == nil || d.reader == nil {
		return nil
	}
	return d.reader.Close()
}
