package memory

import (
	"context"
	"sort"
	"sync"

	ports "finance/internal/sheets"
)

var (
	_ ports.SnapshotWriter = (*Store)(nil)
	_ ports.SnapshotReader = (*Store)(nil)
)

// Store keeps exported month snapshots in process.
type Store struct {
	mu   sync.Mutex
	rows map[string]ports.Snapshot
}

func New() *Store {
	return &Store{rows: make(map[string]ports.Snapshot)}
}

func (s *Store) UpsertSnapshot(_ context.Context, snap ports.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[snap.Key] = snap
	return nil
}

func (s *Store) ClearSnapshot(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, key)
	return nil
}

// ListSnapshots returns the rows ordered by month key.
func (s *Store) ListSnapshots(_ context.Context) ([]ports.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Snapshot, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
