package sweep

import "net/netip"

// defaultSubnetStrings is the CDN's published IPv4 range table: 14 blocks whose usable address
// count (each /24-equivalent sub-block minus its network and broadcast address) sums to exactly
// 1,511,808 - see CountFull and the enumeration tests. Overridable at runtime via --subnets (a
// file or a comma-separated CIDR list), parsed by ParseSubnets below.
var defaultSubnetStrings = []string{
	"104.16.0.0/14",  // 1024 /24s * 254 = 260096
	"162.158.0.0/15", // 512  /24s * 254 = 130048
	"108.162.0.0/15", // 512  /24s * 254 = 130048
	"141.101.0.0/15", // 512  /24s * 254 = 130048
	"190.92.0.0/15",  // 512  /24s * 254 = 130048
	"188.114.0.0/15", // 512  /24s * 254 = 130048
	"197.234.0.0/15", // 512  /24s * 254 = 130048
	"103.20.0.0/15",  // 512  /24s * 254 = 130048
	"173.245.0.0/16", // 256  /24s * 254 = 65024
	"131.0.0.0/16",   // 256  /24s * 254 = 65024
	"198.40.0.0/16",  // 256  /24s * 254 = 65024
	"199.27.0.0/16",  // 256  /24s * 254 = 65024
	"172.68.0.0/16",  // 256  /24s * 254 = 65024
	"45.64.0.0/18",   // 64   /24s * 254 = 16256
}

// DefaultSubnets returns the built-in published subnet table.
func DefaultSubnets() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(defaultSubnetStrings))
	for _, s := range defaultSubnetStrings {
		out = append(out, netip.MustParsePrefix(s))
	}

	return out
}
