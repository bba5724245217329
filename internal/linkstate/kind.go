// Package linkstate implements the durable per-URL lifecycle record and its
// conflict-free, timestamp-ordered merge operator.
package linkstate

import "fmt"

// Kind describes where a URL sits in the crawl lifecycle.
type Kind uint8

const (
	Discovered         Kind = 0
	ReservedForCrawl   Kind = 1
	Crawled            Kind = 2
	ProcessedAndStored Kind = 3
	InternalError      Kind = 32
	// Unset is the sentinel used by update_state's minimal upserts, never
	// persisted as a "real" kind value on its own.
	Unset Kind = 254
)

// String renders a human-readable name, including for unknown raw values.
func (k Kind) String() string {
	switch k {
	case Discovered:
		return "Discovered"
	case ReservedForCrawl:
		return "ReservedForCrawl"
	case Crawled:
		return "Crawled"
	case ProcessedAndStored:
		return "ProcessedAndStored"
	case InternalError:
		return "InternalError"
	case Unset:
		return "Unset"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// IsSignificant reports whether k is one of the four "real progress" kinds.
// Discovered..=ProcessedAndStored (values 0..=3) are
// significant; InternalError, Unset and any unrecognized raw value are not.
func (k Kind) IsSignificant() bool {
	return k <= ProcessedAndStored
}

// Max returns the greater of two kinds by their underlying numeric order,
// used by the merge rule to carry forward the highest significant kind
// ever observed.
func Max(a, b Kind) Kind {
	if a >= b {
		return a
	}
	return b
}
