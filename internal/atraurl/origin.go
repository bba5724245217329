package atraurl

import "strings"

// OriginPolicy selects the granularity used to derive an Origin from a URL.
type OriginPolicy int

const (
	// OriginByAuthority groups by scheme+host+port (the default).
	OriginByAuthority OriginPolicy = iota
	// OriginByDomain groups by registrable domain, ignoring subdomain and
	// scheme/port. Coarser: two subdomains of example.com share an origin.
	OriginByDomain
)

// Origin is the politeness-granularity identifier for a URL: the unit the
// guard manager reserves and the budget evaluator keys on. It is always
// lower-case.
type Origin string

// OfURL derives the default (by-authority) origin of u. Use OfURLWithPolicy
// for the "by domain" policy.
func OfURL(u URL) Origin {
	return Origin(strings.ToLower(u.Scheme() + "://" + u.Host()))
}

// OfURLWithPolicy derives the origin of u under the given policy.
func OfURLWithPolicy(u URL, policy OriginPolicy) Origin {
	if policy == OriginByAuthority {
		return OfURL(u)
	}
	return Origin(strings.ToLower(registrableDomain(hostOnly(u.Host()))))
}

// Origin returns the URL's default origin (by-authority).
func (u URL) Origin() Origin { return OfURL(u) }

func hostOnly(hostport string) string {
	if idx := strings.LastIndex(hostport, ":"); idx >= 0 {
		// Guard against IPv6 literals like [::1]:8080.
		if !strings.Contains(hostport[idx:], "]") {
			return hostport[:idx]
		}
	}
	return hostport
}

// registrableDomain returns a coarse approximation of the eTLD+1: the last
// two labels of the host, unless the host is short enough that it already
// is the registrable domain. This intentionally does not consult the
// Public Suffix List (out of scope): it is a heuristic good enough for
// "treat www.example.co.uk and shop.example.co.uk as one origin" without
// a PSL dependency the corpus does not carry.
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
