package sink

import (
	"context"
	"errors"
	"sync"
)

var errFakeSinkWrite = errors.New("sink: fake sink write failure")

// MemoryStore is an in-process, non-durable RelationalStore used by the
// buffer tests.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]Reading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]Reading)}
}

func (s *MemoryStore) Append(ctx context.Context, r Reading) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	r.Synced = false
	s.rows[r.ID] = r
	return r.ID, nil
}

func (s *MemoryStore) SelectUnsynced(ctx context.Context, limit int) ([]Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reading
	for _, r := range s.rows {
		if !r.Synced {
			out = append(out, r)
		}
	}
	sortByTsThenID(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkSynced(ctx context.Context, ids []int64, syncedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if r, ok := s.rows[id]; ok {
			r.Synced = true
			r.SyncedAt = syncedAt
			s.rows[id] = r
		}
	}
	return nil
}

func (s *MemoryStore) DeleteSyncedOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.rows {
		if r.Synced && r.SyncedAt < cutoff {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountUnsynced(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if !r.Synced {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountSynced(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if r.Synced {
			n++
		}
	}
	return n, nil
}

func sortByTsThenID(rs []Reading) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && less(rs[j], rs[j-1]); j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

func less(a, b Reading) bool {
	if a.Ts != b.Ts {
		return a.Ts < b.Ts
	}
	return a.ID < b.ID
}

var _ RelationalStore = (*MemoryStore)(nil)

// FakeSink is a controllable in-memory TimeSeriesSink for tests: callers
// can flip Connected/Fail to exercise the buffer's fallback paths
// without a real time-series backend.
type FakeSink struct {
	mu        sync.Mutex
	Connected bool
	Fail      bool
	Points    []Point
}

func NewFakeSink() *FakeSink {
	return &FakeSink{Connected: true}
}

func (f *FakeSink) WritePoint(ctx context.Context, p Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return errFakeSinkWrite
	}
	f.Points = append(f.Points, p)
	return nil
}

func (f *FakeSink) WriteBatch(ctx context.Context, points []Point) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return 0, errFakeSinkWrite
	}
	f.Points = append(f.Points, points...)
	return len(points), nil
}

func (f *FakeSink) QueryStatistics(ctx context.Context, sensorName string, start, stop int64) (Statistics, error) {
	return Statistics{}, nil
}

func (f *FakeSink) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

var _ TimeSeriesSink = (*FakeSink)(nil)

// NullSink is the default TimeSeriesSink when no cloud backend is
// configured: always disconnected, so the buffer persists everything
// durably and simply never drains. It lets the edge gateway run
// standalone without a cloud dependency while keeping the buffer's
// contract (write-through when available, durable fallback otherwise)
// intact.
type NullSink struct{}

func (NullSink) WritePoint(ctx context.Context, p Point) error { return errNoCloudSink }
func (NullSink) WriteBatch(ctx context.Context, points []Point) (int, error) {
	return 0, errNoCloudSink
}
func (NullSink) QueryStatistics(ctx context.Context, sensorName string, start, stop int64) (Statistics, error) {
	return Statistics{}, nil
}
func (NullSink) IsConnected() bool { return false }

var errNoCloudSink = errors.New("sink: no cloud time-series backend configured")

var _ TimeSeriesSink = NullSink{}
