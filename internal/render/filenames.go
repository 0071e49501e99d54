package render

import "strings"

const (
	hostFilePrefix       = "nubi-host-"
	hostFileSuffix       = ".conf"
	DefaultRouteFilename = "00-nubi-default"
)

// HostFilename derives a ProxyHost's on-disk fragment name from its domain
// alone, so filename(H.domain) is injective over any set of accepted
// domains and depends on nothing else about H.
func HostFilename(domain string) string {
	mangled := strings.ReplaceAll(domain, "*", "_wildcard_")
	mangled = strings.ReplaceAll(mangled, ".", "_")
	return hostFilePrefix + mangled + hostFileSuffix
}

// mangle turns a domain into an nginx identifier-safe token by replacing
// every non-alphanumeric rune with an underscore. Used for upstream block
// names, which is a distinct derivation from HostFilename.
func mangle(domain string) string {
	var b strings.Builder
	b.Grow(len(domain))
	for _, r := range domain {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// UpstreamName returns the nubi_-prefixed upstream block identifier for a
// host's domain.
func UpstreamName(domain string) string {
	return "nubi_" + mangle(domain)
}
