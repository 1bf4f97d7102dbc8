package call

import "sync"

// DefaultMemoryLimit bounds total history entries, pinned included.
const DefaultMemoryLimit = 20

// Memory is the bounded, ordered conversation history for one
// session. Pinned entries (system preamble, opening greeting) are
// always first and never evicted; once the total exceeds the limit,
// the oldest non-pinned entries are dropped first.
type Memory struct {
	mu     sync.Mutex
	limit  int
	pinned []Message
	rest   []Message
}

// NewMemory creates an empty history bounded to limit entries.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{limit: limit}
}

// Pin appends a permanent entry. Pinned entries precede all others in
// snapshots and are exempt from eviction.
func (m *Memory) Pin(role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned = append(m.pinned, Message{Role: role, Content: content})
}

// Append adds an entry, evicting the oldest non-pinned entries if the
// bound is exceeded.
func (m *Memory) Append(role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rest = append(m.rest, Message{Role: role, Content: content})
	for len(m.pinned)+len(m.rest) > m.limit && len(m.rest) > 0 {
		m.rest = m.rest[1:]
	}
}

// Snapshot returns a copy of the ordered history, pinned entries
// first. The copy is used verbatim as the generation prompt.
func (m *Memory) Snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, len(m.pinned)+len(m.rest))
	out = append(out, m.pinned...)
	out = append(out, m.rest...)
	return out
}

// Len returns the current number of entries, pinned included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pinned) + len(m.rest)
}
