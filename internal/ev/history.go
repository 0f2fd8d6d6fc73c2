package ev

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbx/arb-engine/internal/model"
)

// HistoryCapacity bounds the rolling fill history. Oldest entries are
// evicted FIFO once the buffer is full.
const HistoryCapacity = 1000

// fillHistory is a bounded ring buffer of realized fill results, owned by
// one Gate instance. Single writer, multiple readers: the mutex is held
// only for the copy, never during a percentile scan.
type fillHistory struct {
	mu      sync.Mutex
	entries []model.FillResult
	next    int
	full    bool
}

func newFillHistory() *fillHistory {
	return &fillHistory{entries: make([]model.FillResult, HistoryCapacity)}
}

func (h *fillHistory) append(fr model.FillResult) {
	h.mu.Lock()
	h.entries[h.next] = fr
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
	h.mu.Unlock()
}

func (h *fillHistory) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// snapshotSlippage copies out the slippage observations of filled entries.
// Readers run the percentile scan on the copy.
func (h *fillHistory) snapshotSlippage() []decimal.Decimal {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.entries)
	}
	out := make([]decimal.Decimal, 0, n)
	for i := 0; i < n; i++ {
		e := h.entries[i]
		if e.Filled && e.SlippageBps != nil {
			out = append(out, *e.SlippageBps)
		}
	}
	return out
}

// fillRate returns the realized fraction of filled entries, or the neutral
// default 0.5 when the history is empty (division guard).
func (h *fillHistory) fillRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.entries)
	}
	if n == 0 {
		return 0.5
	}
	filled := 0
	for i := 0; i < n; i++ {
		if h.entries[i].Filled {
			filled++
		}
	}
	return float64(filled) / float64(n)
}
