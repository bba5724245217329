package blacklist

import "sync/atomic"

// Managed is a hot-swappable handle on a List: the crawl loop reads
// through it on every discovered URL, while a separate updater (e.g. a
// config-reload command) replaces the underlying List atomically, without
// the readers ever blocking.
type Managed struct {
	current atomic.Pointer[List]
}

// NewManaged wraps initial as the starting snapshot.
func NewManaged(initial List) *Managed {
	m := &Managed{}
	m.current.Store(&initial)
	return m
}

// Update atomically replaces the current snapshot.
func (m *Managed) Update(next List) {
	m.current.Store(&next)
}

// Version returns the current snapshot's version.
func (m *Managed) Version() (uint64, bool) {
	return m.current.Load().Version()
}

// HasMatchFor reports whether the current snapshot matches target.
func (m *Managed) HasMatchFor(target string) bool {
	return m.current.Load().HasMatchFor(target)
}
