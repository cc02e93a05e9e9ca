package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
)

// EpochLedgerStore implements domain.EpochLedgerStore as a Redis hash keyed by
// epoch number. HSETNX keeps the first write for each epoch.
type EpochLedgerStore struct {
	rdb *redis.Client
}

// NewEpochLedgerStore creates an EpochLedgerStore backed by the given Client.
func NewEpochLedgerStore(c *Client) *EpochLedgerStore {
	return &EpochLedgerStore{rdb: c.Underlying()}
}

type ledgerValue struct {
	Block      uint64    `json:"block"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Save records entry unless its epoch is already present.
func (s *EpochLedgerStore) Save(ctx context.Context, entry domain.LedgerEntry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.rdb.HSetNX(ctx, epochsKey, epochField(entry.Epoch), data).Err(); err != nil {
		return fmt.Errorf("redis: save epoch %d: %w", entry.Epoch, err)
	}
	return nil
}

// Load returns every stored entry ordered by epoch.
func (s *EpochLedgerStore) Load(ctx context.Context) ([]domain.LedgerEntry, error) {
	raw, err := s.rdb.HGetAll(ctx, epochsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load epochs: %w", err)
	}
	return decodeEntries(raw)
}

func encodeEntry(entry domain.LedgerEntry) ([]byte, error) {
	data, err := json.Marshal(ledgerValue{Block: entry.Block, RecordedAt: entry.RecordedAt})
	if err != nil {
		return nil, fmt.Errorf("redis: encode epoch %d: %w", entry.Epoch, err)
	}
	return data, nil
}

func decodeEntries(raw map[string]string) ([]domain.LedgerEntry, error) {
	entries := make([]domain.LedgerEntry, 0, len(raw))
	for field, value := range raw {
		epoch, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: bad epoch field %q: %w", field, err)
		}
		var v ledgerValue
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return nil, fmt.Errorf("redis: decode epoch %d: %w", epoch, err)
		}
		entries = append(entries, domain.LedgerEntry{Epoch: epoch, Block: v.Block, RecordedAt: v.RecordedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Epoch < entries[j].Epoch })
	return entries, nil
}

var _ domain.EpochLedgerStore = (*EpochLedgerStore)(nil)
