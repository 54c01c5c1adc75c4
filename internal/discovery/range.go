package discovery

import (
	"context"
	"fmt"
	"math/big"
	"net"
)

// RangeGenerator enumerates every host address of a CIDR, emitting one
// target per configured port for each host.
type RangeGenerator struct {
	ports []int

	base    net.IP
	size    *big.Int // number of host addresses in the network
	current *big.Int // hosts emitted so far
	portIdx int

	count int64 // Next() calls so far; ctx is checked every yieldBatch calls
}

// NewRange parses cidr and returns a generator over its host addresses.
// A /32 (or /128) still yields its single address, per spec.md boundary
// 10 — "host iteration of a /32 yields the single address" rather than
// the empty set a subnet-broadcast-aware enumeration would produce.
func NewRange(cidr string, ports []int) (*RangeGenerator, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("discovery: range generator requires at least one port")
	}

	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid CIDR %q: %w", cidr, err)
	}

	ones, bits := network.Mask.Size()
	hostBits := bits - ones
	size := new(big.Int).Lsh(big.NewInt(1), uint(hostBits))

	return &RangeGenerator{
		ports:   append([]int(nil), ports...),
		base:    network.IP,
		size:    size,
		current: big.NewInt(0),
	}, nil
}

func (g *RangeGenerator) Next(ctx context.Context) (Target, bool, error) {
	if g.current.Cmp(g.size) >= 0 {
		return Target{}, false, nil
	}

	g.count++
	if g.count%yieldBatch == 0 {
		select {
		case <-ctx.Done():
			return Target{}, false, ctx.Err()
		default:
		}
	}

	ip := addIP(g.base, g.current)
	port := g.ports[g.portIdx]

	g.portIdx++
	if g.portIdx >= len(g.ports) {
		g.portIdx = 0
		g.current.Add(g.current, big.NewInt(1))
	}

	return Target{IP: ip.String(), Port: port}, true, nil
}

func (g *RangeGenerator) Estimate() (int64, bool) {
	total := new(big.Int).Mul(g.size, big.NewInt(int64(len(g.ports))))
	if !total.IsInt64() {
		return 0, false
	}
	return total.Int64(), true
}

// addIP returns base + offset, treating base as a big-endian integer of
// its own byte length (4 for IPv4, 16 for IPv6).
func addIP(base net.IP, offset *big.Int) net.IP {
	b := base.To4()
	if b == nil {
		b = base.To16()
	}

	baseInt := new(big.Int).SetBytes(b)
	resultInt := new(big.Int).Add(baseInt, offset)

	resultBytes := resultInt.Bytes()
	out := make([]byte, len(b))
	copy(out[len(out)-len(resultBytes):], resultBytes)
	return net.IP(out)
}
