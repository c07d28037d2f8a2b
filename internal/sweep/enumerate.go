package sweep

import (
	"fmt"
	"math/rand"
	"net/netip"
	"strings"
)

const me = "sweep"

// ParseSubnets parses an override subnet list given as one CIDR per element (blank and # comment
// lines ignored). The caller (cmd/cdnedge) splits a comma-separated list or a file's lines into
// elements; this just parses CIDR text.
func ParseSubnets(lines []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := netip.ParsePrefix(line)
		if err != nil {
			return nil, fmt.Errorf("%s:ParseSubnets: %q: %w", me, line, err)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s:ParseSubnets: no subnets supplied", me)
	}

	return out, nil
}

// eachAddress enumerates every usable address of a prefix with length <= 24 as
// /24-sized sub-blocks, excluding each sub-block's network and broadcast address. Prefixes
// longer than /24 (/25..../30) are treated as a single block with no network/broadcast
// exclusion applied beyond the prefix's own first/last address, matching spec's "network and
// broadcast addresses are excluded from /24-and-shorter blocks" wording precisely.
func eachAddress(p netip.Prefix, visit func(netip.Addr)) {
	bits := p.Bits()
	switch {
	case bits >= 31: // /31, /32: every address in the block is usable
		addr := p.Addr()
		last := lastAddr(p)
		for {
			visit(addr)
			if addr == last {
				return
			}
			addr = addr.Next()
		}

	case bits == 24:
		visit24Block(p, visit)

	case bits < 24:
		eachSlash24(p, visit24Block, visit)

	default: // 25..30: exclude only this block's own network/broadcast
		addr := p.Addr()
		last := lastAddr(p)
		network := addr
		broadcast := last
		for a := addr; ; a = a.Next() {
			if a != network && a != broadcast {
				visit(a)
			}
			if a == last {
				break
			}
		}
	}
}

// eachSlash24 walks every /24 contained in p (p.Bits() < 24) and applies fn to each.
func eachSlash24(p netip.Prefix, fn func(netip.Prefix, func(netip.Addr)), visit func(netip.Addr)) {
	base := p.Addr().As4()
	bits := p.Bits()
	numSlash24 := 1 << uint(24-bits)
	baseInt := be32(base)
	step := uint32(1) << 8

	for i := 0; i < numSlash24; i++ {
		blockBase := addrFromUint32(baseInt + uint32(i)*step)
		blockPrefix := netip.PrefixFrom(blockBase, 24)
		fn(blockPrefix, visit)
	}
}

func visit24Block(p netip.Prefix, visit func(netip.Addr)) {
	network := p.Addr()
	broadcast := lastAddr(p)
	for a := network; ; a = a.Next() {
		if a != network && a != broadcast {
			visit(a)
		}
		if a == broadcast {
			break
		}
	}
}

// lastAddr returns the final (broadcast-equivalent) address of p.
func lastAddr(p netip.Prefix) netip.Addr {
	base := be32(p.Addr().As4())
	bits := p.Bits()
	hostBits := 32 - bits
	mask := uint32(1)<<uint(hostBits) - 1
	last := base | mask

	return addrFromUint32(last)
}

func be32(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func addrFromUint32(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// CountFull returns the exact number of addresses eachAddress would yield for prefixes, without
// materializing them - used by the full/mega sampling modes to size worker-pool buffers and by
// tests to verify the built-in table's published total.
func CountFull(prefixes []netip.Prefix) uint64 {
	var total uint64
	for _, p := range prefixes {
		bits := p.Bits()
		switch {
		case bits >= 31:
			total += uint64(1) << uint(32-bits)
		case bits <= 24:
			blocks := uint64(1) << uint(24-bits)
			total += blocks * 254
		default:
			total += uint64(1)<<uint(32-bits) - 2
		}
	}

	return total
}

// Enumerate produces addresses from prefixes according to mode's sampling density (see
// modeTable). full and mega yield every usable address; quick and normal yield a bounded random
// sample per /24 block. rng, if nil, is replaced by a new source with the fixed seed 1.
func Enumerate(prefixes []netip.Prefix, mode SamplingMode, rng *rand.Rand) []netip.Addr {
	params, ok := modeTable[mode]
	if !ok {
		params = modeTable[ModeNormal]
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	if params.PerSlash24 < 0 { // Sentinel for "all"
		var out []netip.Addr
		for _, p := range prefixes {
			eachAddress(p, func(a netip.Addr) { out = append(out, a) })
		}

		return out
	}

	var out []netip.Addr
	for _, p := range prefixes {
		bits := p.Bits()
		if bits >= 25 { // Smaller than a /24: just sample directly from the whole block
			var block []netip.Addr
			eachAddress(p, func(a netip.Addr) { block = append(block, a) })
			out = append(out, sampleN(block, params.PerSlash24, rng)...)
			continue
		}
		if bits == 24 {
			var block []netip.Addr
			visit24Block(p, func(a netip.Addr) { block = append(block, a) })
			out = append(out, sampleN(block, params.PerSlash24, rng)...)
			continue
		}

		eachSlash24(p, func(blockPrefix netip.Prefix, _ func(netip.Addr)) {
			var block []netip.Addr
			visit24Block(blockPrefix, func(a netip.Addr) { block = append(block, a) })
			out = append(out, sampleN(block, params.PerSlash24, rng)...)
		}, nil)
	}

	return out
}

func sampleN(pool []netip.Addr, n int, rng *rand.Rand) []netip.Addr {
	if n >= len(pool) {
		return pool
	}
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	perm := rng.Perm(len(pool))[:n]
	out := make([]netip.Addr, n)
	for i, idx := range perm {
		out[i] = pool[idx]
	}

	return out
}
