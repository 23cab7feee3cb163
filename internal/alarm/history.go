package alarm

import (
	"context"
	"fmt"
	"sync"
)

// History is the dedup state behind alarm evaluation: per (table, rule)
// sets of violation fingerprints already delivered. Implementations must
// make FilterNew atomic for concurrent evaluations of the same key;
// different keys may proceed in parallel.
type History interface {
	// FilterNew returns the subset of fingerprints not seen before for
	// the key, recording exactly that subset as seen. Check and record
	// are one atomic step per key.
	FilterNew(ctx context.Context, tableName string, alarmID int64, fingerprints []string) ([]string, error)

	// Seen returns the recorded fingerprint set, empty if absent.
	Seen(ctx context.Context, tableName string, alarmID int64) (map[string]struct{}, error)

	// Record unions fingerprints into the key's set, creating it if absent.
	Record(ctx context.Context, tableName string, alarmID int64, fingerprints []string) error

	// Clear removes entries matching the filter; a zero filter clears
	// everything.
	Clear(ctx context.Context, filter ClearFilter) error
}

// ClearFilter narrows Clear; zero-valued fields match everything and the
// set fields combine with AND.
type ClearFilter struct {
	TableName string
	AlarmID   int64
}

func (f ClearFilter) matches(key historyKey) bool {
	if f.TableName != "" && key.tableName != f.TableName {
		return false
	}
	if f.AlarmID != 0 && key.alarmID != f.AlarmID {
		return false
	}
	return true
}

type historyKey struct {
	tableName string
	alarmID   int64
}

// MemoryHistory keeps fingerprints for the process lifetime. A restart
// resets all dedup state and previously delivered violations fire again.
type MemoryHistory struct {
	mu      sync.Mutex
	entries map[historyKey]map[string]struct{}
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		entries: make(map[historyKey]map[string]struct{}),
	}
}

func (h *MemoryHistory) FilterNew(_ context.Context, tableName string, alarmID int64, fingerprints []string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := historyKey{tableName: tableName, alarmID: alarmID}
	seen := h.entries[key]

	var fresh []string
	for _, fp := range fingerprints {
		if _, ok := seen[fp]; ok {
			continue
		}
		if seen == nil {
			seen = make(map[string]struct{})
			h.entries[key] = seen
		}
		seen[fp] = struct{}{}
		fresh = append(fresh, fp)
	}

	return fresh, nil
}

func (h *MemoryHistory) Seen(_ context.Context, tableName string, alarmID int64) (map[string]struct{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := historyKey{tableName: tableName, alarmID: alarmID}
	out := make(map[string]struct{}, len(h.entries[key]))
	for fp := range h.entries[key] {
		out[fp] = struct{}{}
	}
	return out, nil
}

func (h *MemoryHistory) Record(_ context.Context, tableName string, alarmID int64, fingerprints []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := historyKey{tableName: tableName, alarmID: alarmID}
	seen := h.entries[key]
	if seen == nil {
		seen = make(map[string]struct{})
		h.entries[key] = seen
	}
	for _, fp := range fingerprints {
		seen[fp] = struct{}{}
	}
	return nil
}

func (h *MemoryHistory) Clear(_ context.Context, filter ClearFilter) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range h.entries {
		if filter.matches(key) {
			delete(h.entries, key)
		}
	}
	return nil
}

var _ History = (*MemoryHistory)(nil)

func historyRedisKey(tableName string, alarmID int64) string {
	return fmt.Sprintf("alarmhist:%s:%d", tableName, alarmID)
}
