package support

import (
	"net/netip"
	"regexp"
	"strings"
)

// Four dot-separated groups of 1-3 digits. Octet ranges are checked by the parser.
var ipv4Candidate = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// Special-purpose IPv4 blocks that are not globally reachable.
var nonPublicPrefixes = mustPrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/29",
	"192.0.0.170/31",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"240.0.0.0/4",
	"255.255.255.255/32",
)

func mustPrefixes(raw ...string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, r := range raw {
		prefixes = append(prefixes, netip.MustParsePrefix(r))
	}
	return prefixes
}

// ExtractIPs pulls public IPv4 addresses out of free-form text. The result is
// deduplicated and keeps first-occurrence order; it is empty, never nil, when
// nothing usable is found.
func ExtractIPs(text string) []string {
	candidates := ipv4Candidate.FindAllString(text, -1)

	seen := make(map[string]struct{}, len(candidates))
	ips := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		addr, ok := ParsePublicIPv4(candidate)
		if !ok {
			continue
		}
		ip := addr.String()
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		ips = append(ips, ip)
	}

	return ips
}

// ParsePublicIPv4 parses a strict dotted quad and reports whether it is a
// public unicast address.
func ParsePublicIPv4(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, IsPublicIPv4(addr)
}

func IsPublicIPv4(addr netip.Addr) bool {
	if !addr.Is4() {
		return false
	}
	if addr.IsLoopback() || addr.IsMulticast() || addr.IsPrivate() {
		return false
	}
	for _, prefix := range nonPublicPrefixes {
		if prefix.Contains(addr) {
			return false
		}
	}
	return true
}

// JoinIPs renders an IP list the way the input field shows it after extraction.
func JoinIPs(ips []string) string {
	return strings.Join(ips, ", ")
}

// SplitInput splits the input field on commas without any cleanup; the query
// job is expected to cope with blanks and stray whitespace.
func SplitInput(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, ",")
}

// MergeInput appends imported text to the current input, one per line.
func MergeInput(current, imported string) string {
	current = strings.TrimSpace(current)
	if current == "" {
		return imported
	}
	return current + "\n" + imported
}
