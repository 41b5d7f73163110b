package selection

// History tracks which units a learner has played and which one is current.
type History struct {
	PlayCounts map[string]int
	Current    string
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{PlayCounts: make(map[string]int)}
}

// RestoreHistory rebuilds a history from persisted play counts.
func RestoreHistory(counts map[string]int, current string) *History {
	h := NewHistory()
	for id, n := range counts {
		h.PlayCounts[id] = n
	}
	h.Current = current
	return h
}

// Clone returns an independent copy of h.
func (h *History) Clone() *History {
	return RestoreHistory(h.PlayCounts, h.Current)
}

// Count returns how often unit id has been selected.
func (h *History) Count(id string) int { return h.PlayCounts[id] }

// Record marks id as played and current.
func (h *History) Record(id string) {
	if h.PlayCounts == nil {
		h.PlayCounts = make(map[string]int)
	}
	h.PlayCounts[id]++
	h.Current = id
}

// Reset forgets every play.
func (h *History) Reset() {
	h.PlayCounts = make(map[string]int)
	h.Current = ""
}

// Snapshot copies the play counts for persistence.
func (h *History) Snapshot() map[string]int {
	out := make(map[string]int, len(h.PlayCounts))
	for id, n := range h.PlayCounts {
		out[id] = n
	}
	return out
}
