package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// IPAPIProvider resolves IPs through ip-api.com's free JSON endpoint,
// for deployments with no local GeoIP2 database. It is rate-limited by
// the remote service (45 requests/minute on the free tier), so callers
// should keep it behind a CachedProvider.
type IPAPIProvider struct {
	client *http.Client
}

// NewIPAPI builds a provider using a client with a conservative timeout.
func NewIPAPI() *IPAPIProvider {
	return &IPAPIProvider{client: &http.Client{Timeout: 5 * time.Second}}
}

type ipapiResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	CountryCode string  `json:"countryCode"`
	Country     string  `json:"country"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AS          string  `json:"as"`
}

func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	url := fmt.Sprintf("http://ip-api.com/json/%s?fields=status,message,countryCode,country,city,lat,lon,as", ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("geoip: building ip-api request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoip: ip-api request for %s: %w", ip, err)
	}
	defer resp.Body.Close()

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geoip: decoding ip-api response for %s: %w", ip, err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("geoip: ip-api lookup for %s failed: %s", ip, body.Message)
	}

	return &Location{
		IP:          ip,
		CountryCode: body.CountryCode,
		CountryName: body.Country,
		City:        body.City,
		Latitude:    body.Lat,
		Longitude:   body.Lon,
		ASOrg:       body.AS,
		Source:      "ipapi",
	}, nil
}

func (p *IPAPIProvider) Close() error {
	return nil
}
