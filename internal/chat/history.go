package chat

import "sync"

// DefaultHistoryLimit caps the history buffer when no limit is configured.
const DefaultHistoryLimit = 50

// History is a bounded FIFO of recent public chat lines, shared by all
// sessions: appended on every broadcast, replayed to each new joiner.
// Private messages and control lines are never recorded.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []string
}

// NewHistory creates a history buffer holding at most limit lines.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit:   limit,
		entries: make([]string, 0, limit),
	}
}

// Append records one public message, evicting the oldest entry at capacity.
func (h *History) Append(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == h.limit {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = line
		return
	}
	h.entries = append(h.entries, line)
}

// Snapshot returns a copy of the buffered lines in insertion order.
func (h *History) Snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the current number of buffered lines.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
