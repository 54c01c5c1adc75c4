package geoip

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindProvider resolves IPs against a local GeoIP2 City database
// file. It never makes a network call, so it's the preferred provider
// for high-volume scans.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// NewMaxMind opens the GeoIP2 database at path.
func NewMaxMind(path string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: opening MaxMind database %s: %w", path, err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

func (p *MaxMindProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("geoip: invalid IP %q", ip)
	}

	record, err := p.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("geoip: MaxMind lookup for %s: %w", ip, err)
	}

	return &Location{
		IP:          ip,
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
		Source:      "geoip2",
	}, nil
}

func (p *MaxMindProvider) Close() error {
	return p.reader.Close()
}
