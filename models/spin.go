package models

import "sync"

// DefaultHistorySize is how many settled spins the panel keeps
const DefaultHistorySize = 10

// Outcome classifies a settled spin
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// SpinResult is the server's settlement of one spin
type SpinResult struct {
	TimestampMs int64  `json:"timestampMs"`
	BetAmount   int64  `json:"betAmount"`
	WinAmount   int64  `json:"winAmount"`
	Balance     int64  `json:"balance"`
	Result      string `json:"result"`
}

func (r SpinResult) IsWin() bool { return r.WinAmount > 0 }

func (r SpinResult) Outcome() Outcome {
	if r.IsWin() {
		return OutcomeWin
	}
	return OutcomeLoss
}

// HistoryEntry is one row of the recent spins table
type HistoryEntry struct {
	Bet     int64   `json:"bet"`
	Win     int64   `json:"win"`
	Result  string  `json:"result"`
	Outcome Outcome `json:"outcome"`
}

func NewHistoryEntry(r SpinResult) HistoryEntry {
	return HistoryEntry{Bet: r.BetAmount, Win: r.WinAmount, Result: r.Result, Outcome: r.Outcome()}
}

// History keeps the most recent entries, newest first
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	size    int
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{entries: make([]HistoryEntry, 0, size), size: size}
}

// Push prepends an entry and evicts the oldest beyond capacity
func (h *History) Push(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) < h.size {
		h.entries = append(h.entries, HistoryEntry{})
	}
	copy(h.entries[1:], h.entries[:len(h.entries)-1])
	h.entries[0] = e
}

// Entries returns a copy, newest first
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *History) Cap() int { return h.size }

// Summary is the count/max/sum triple shown in the stats panel
type Summary struct {
	Count int64 `json:"count"`
	Max   int64 `json:"max"`
	Sum   int64 `json:"sum"`
}

// NormalizeSummary zeroes summaries with no samples. The economy service
// reports an empty summary with max set to the minimum int64.
func NormalizeSummary(s Summary) Summary {
	if s.Count <= 0 {
		return Summary{}
	}
	return s
}

// AggregateStats is the machine-wide statistics snapshot
type AggregateStats struct {
	TimestampMs int64   `json:"timestampMs"`
	RTP         float64 `json:"rtp"`
	BetStats    Summary `json:"betStats"`
	WinStats    Summary `json:"winStats"`
}
