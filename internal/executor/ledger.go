package executor

import (
	"sync"
	"time"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// EpochLedger records which epochs have already been acted on, together with
// the block of the confirmation that stamped them. Entries are never removed
// and the first entry for an epoch wins. It is safe for concurrent use.
type EpochLedger struct {
	entries map[uint64]domain.LedgerEntry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewEpochLedger creates an empty EpochLedger.
func NewEpochLedger() *EpochLedger {
	return &EpochLedger{
		entries: make(map[uint64]domain.LedgerEntry),
		now:     time.Now,
	}
}

// HasTriggered reports whether epoch has been recorded.
func (l *EpochLedger) HasTriggered(epoch uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[epoch]
	return ok
}

// Record stamps epoch with block. It returns false, leaving the existing
// entry untouched, when the epoch is already present.
func (l *EpochLedger) Record(epoch, block uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[epoch]; ok {
		return false
	}
	l.entries[epoch] = domain.LedgerEntry{Epoch: epoch, Block: block, RecordedAt: l.now().UTC()}
	return true
}

// Block returns the confirmation block recorded for epoch.
func (l *EpochLedger) Block(epoch uint64) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[epoch]
	return e.Block, ok
}

// Entry returns the full record for epoch.
func (l *EpochLedger) Entry(epoch uint64) (domain.LedgerEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[epoch]
	return e, ok
}

// Entries returns a snapshot of epoch -> block.
func (l *EpochLedger) Entries() map[uint64]uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[uint64]uint64, len(l.entries))
	for n, e := range l.entries {
		out[n] = e.Block
	}
	return out
}

// Len returns the number of recorded epochs.
func (l *EpochLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Restore loads previously persisted entries. Epochs already present keep
// their current record.
func (l *EpochLedger) Restore(entries []domain.LedgerEntry) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored := 0
	for _, e := range entries {
		if _, ok := l.entries[e.Epoch]; ok {
			continue
		}
		l.entries[e.Epoch] = e
		restored++
	}
	return restored
}
