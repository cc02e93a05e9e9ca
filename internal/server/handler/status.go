package handler

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
	"github.com/alanyoungcy/epochkeeper/internal/executor"
)

// StatusSource exposes the latest evaluated tick.
type StatusSource interface {
	Last() (domain.TickStatus, bool)
}

// LedgerSource exposes the stamped epochs.
type LedgerSource interface {
	Entries() map[uint64]uint64
	Len() int
}

// SchedulerStats exposes the tick scheduler's gate and fire counters.
type SchedulerStats interface {
	Paused() bool
	Fired() int64
	Skipped() int64
}

// StatusHandler serves the keeper's latest tick and its epoch ledger.
type StatusHandler struct {
	mode   string
	source StatusSource
	ledger LedgerSource
	sched  SchedulerStats
}

// NewStatusHandler creates a StatusHandler. sched may be nil.
func NewStatusHandler(mode string, source StatusSource, ledger LedgerSource, sched SchedulerStats) *StatusHandler {
	return &StatusHandler{mode: mode, source: source, ledger: ledger, sched: sched}
}

// GetStatus responds with the mode and the most recent status line.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := h.source.Last()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no tick evaluated yet")
		return
	}
	data, err := executor.StatusJSON(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"mode":          h.mode,
		"paused":        false,
		"ledger_epochs": h.ledger.Len(),
		"status":        json.RawMessage(data),
	}
	if h.sched != nil {
		resp["paused"] = h.sched.Paused()
		resp["scheduler"] = map[string]int64{
			"fired":   h.sched.Fired(),
			"skipped": h.sched.Skipped(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type ledgerEntry struct {
	Epoch uint64 `json:"epoch"`
	Block uint64 `json:"block"`
}

// GetLedger lists the stamped epochs in ascending order.
// GET /api/ledger
func (h *StatusHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	entries := h.ledger.Entries()
	epochs := make([]uint64, 0, len(entries))
	for n := range entries {
		epochs = append(epochs, n)
	}
	slices.Sort(epochs)

	out := make([]ledgerEntry, 0, len(epochs))
	for _, n := range epochs {
		out = append(out, ledgerEntry{Epoch: n, Block: entries[n]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"entries": out,
	})
}
