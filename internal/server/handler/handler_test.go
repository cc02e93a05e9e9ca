package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

type fixedSource struct {
	st domain.TickStatus
	ok bool
}

func (s fixedSource) Last() (domain.TickStatus, bool) { return s.st, s.ok }

type fixedLedger map[uint64]uint64

func (l fixedLedger) Entries() map[uint64]uint64 { return l }
func (l fixedLedger) Len() int                    { return len(l) }

type fixedScheduler struct {
	paused         bool
	fired, skipped int64
}

func (s fixedScheduler) Paused() bool   { return s.paused }
func (s fixedScheduler) Fired() int64   { return s.fired }
func (s fixedScheduler) Skipped() int64 { return s.skipped }

func get(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]Checker{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return nil },
	}, slog.New(slog.DiscardHandler))

	rec, body := get(t, h.HealthCheck)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"redis": "ok", "postgres": "ok"}, body["checks"])
}

func TestHealthCheckDegraded(t *testing.T) {
	h := NewHealthHandler(map[string]Checker{
		"rpc": func(context.Context) error { return errors.New("dial tcp: refused") },
	}, slog.New(slog.DiscardHandler))

	rec, body := get(t, h.HealthCheck)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"rpc": "dial tcp: refused"}, body["checks"])
}

func TestGetStatusBeforeFirstTick(t *testing.T) {
	h := NewStatusHandler("run", fixedSource{}, fixedLedger{}, nil)
	rec, body := get(t, h.GetStatus)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no tick evaluated yet", body["error"])
}

func TestGetStatus(t *testing.T) {
	st := domain.TickStatus{
		TickID:       "tick-1",
		CurrentBlock: 998,
		Epoch:        domain.Epoch{Number: 12, EndBlock: 1000},
		Delta:        2,
		Projection: domain.RateProjection{
			RebaseRate: math.NaN(),
			Horizons:   map[domain.Horizon]float64{domain.HorizonDaily: 0.0015},
		},
		PendingValue: domain.NewAmount(big.NewInt(5_000_000_000), 9),
	}
	sched := fixedScheduler{paused: true, fired: 7, skipped: 2}
	h := NewStatusHandler("monitor", fixedSource{st: st, ok: true}, fixedLedger{12: 1001}, sched)

	rec, body := get(t, h.GetStatus)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "monitor", body["mode"])
	assert.Equal(t, true, body["paused"])
	assert.Equal(t, 1.0, body["ledger_epochs"])
	assert.Equal(t, map[string]any{"fired": 7.0, "skipped": 2.0}, body["scheduler"])

	status, ok := body["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tick-1", status["tick_id"])
	assert.Equal(t, 998.0, status["block"])
	assert.Equal(t, 0.0, status["rebase_rate"])
	assert.Equal(t, "5.000000000", status["pending"])
}

func TestGetStatusWithoutScheduler(t *testing.T) {
	st := domain.TickStatus{TickID: "tick-2", Epoch: domain.Epoch{Number: 12}}
	h := NewStatusHandler("run", fixedSource{st: st, ok: true}, fixedLedger{}, nil)

	rec, body := get(t, h.GetStatus)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["paused"])
	assert.Equal(t, 0.0, body["ledger_epochs"])
	assert.NotContains(t, body, "scheduler")
}

func TestGetLedger(t *testing.T) {
	h := NewStatusHandler("run", fixedSource{}, fixedLedger{13: 1002, 12: 1001}, nil)

	rec, body := get(t, h.GetLedger)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["count"])
	assert.Equal(t, []any{
		map[string]any{"epoch": 12.0, "block": 1001.0},
		map[string]any{"epoch": 13.0, "block": 1002.0},
	}, body["entries"])
}
