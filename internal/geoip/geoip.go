// Package geoip resolves an IP to a coarse location through one of two
// providers — a local MaxMind GeoIP2 database or the ip-api.com HTTP
// API — behind a shared TTL cache, per spec.md §6 and
// original_source/modules/geolocation.py's provider split.
package geoip

import (
	"context"
	"time"
)

// Location is a resolved geolocation result, independent of which
// provider produced it.
type Location struct {
	IP          string
	CountryCode string
	CountryName string
	City        string
	Latitude    float64
	Longitude   float64
	ASN         int
	ASOrg       string
	Source      string
}

// Provider resolves one IP to a Location.
type Provider interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
	Close() error
}

// CachedProvider wraps a Provider with an in-memory TTL cache so a
// scan that revisits the same /24 repeatedly doesn't refetch or
// re-query the local database for every hit.
type CachedProvider struct {
	inner Provider
	cache *ttlCache
}

// NewCached wraps inner with a cache entries expire after ttl.
func NewCached(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: newTTLCache(ttl)}
}

func (c *CachedProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	if loc, ok := c.cache.get(ip); ok {
		return loc, nil
	}
	loc, err := c.inner.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		c.cache.set(ip, loc)
	}
	return loc, nil
}

func (c *CachedProvider) Close() error {
	return c.inner.Close()
}
