package engine

import (
	"sync"
	"time"
)

// HostMemory remembers which engine last loaded each host, so later pages
// of the same listing skip engines that are known to fail there.
// Entries expire after a TTL.
type HostMemory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]hostEntry
}

type hostEntry struct {
	engine  string
	expires time.Time
}

// NewHostMemory creates a HostMemory whose entries live for ttl.
func NewHostMemory(ttl time.Duration) *HostMemory {
	return &HostMemory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]hostEntry),
	}
}

// Get returns the remembered engine for host, or "".
func (m *HostMemory) Get(host string) string {
	if m == nil {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expires) {
		delete(m.entries, host)
		return ""
	}
	return e.engine
}

// Set records that engine succeeded for host.
func (m *HostMemory) Set(host, engine string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	m.entries[host] = hostEntry{engine: engine, expires: m.now().Add(m.ttl)}
}

// Forget drops host, typically after its remembered engine failed.
func (m *HostMemory) Forget(host string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, host)
}

// Len returns the number of live entries.
func (m *HostMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	return len(m.entries)
}

// prune drops expired entries. Callers hold mu.
func (m *HostMemory) prune() {
	now := m.now()
	for host, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, host)
		}
	}
}
