// Package buffer implements §4.5's store-and-forward buffer: writes land
// at the time-series sink synchronously when it looks available, and
// fall back to durable local storage otherwise; a background task drains
// the backlog on an interval. Grounded on the teacher's background
// drain/publish tasks in internal/messaging (a goroutine + ticker pattern
// feeding a remote endpoint) and on the buffer's own narrow
// RelationalStore contract (§6).
package buffer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/edgehub/core/internal/logging"
	"github.com/edgehub/core/internal/sink"
)

const (
	DefaultBatchSize      = 100
	DefaultFlushIntervalS = 5
	DefaultGCHorizonH     = 24
)

type Config struct {
	BatchSize      int
	FlushIntervalS int
	GCHorizonH     int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushIntervalS <= 0 {
		c.FlushIntervalS = DefaultFlushIntervalS
	}
	if c.GCHorizonH <= 0 {
		c.GCHorizonH = DefaultGCHorizonH
	}
	return c
}

// Buffer is safe for concurrent Add/Flush calls; cloudAvailable is
// advisory only (§5's shared-resource policy: "set under the drain path
// only" — Add also flips it false on a failed synchronous write, which
// is still a write made on the calling goroutine's own path, not a
// second mutator racing the drain loop).
type Buffer struct {
	cfg   Config
	store sink.RelationalStore
	dest  sink.TimeSeriesSink

	cloudAvailable atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, store sink.RelationalStore, dest sink.TimeSeriesSink) *Buffer {
	b := &Buffer{cfg: cfg.withDefaults(), store: store, dest: dest}
	b.cloudAvailable.Store(true)
	return b
}

// Start launches the background drain task; flush runs every
// flush_interval_s until Stop.
func (b *Buffer) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.drainLoop(runCtx)
}

// Stop cancels the drain task and attempts one best-effort final flush.
func (b *Buffer) Stop(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	b.Flush(ctx)
}

func (b *Buffer) drainLoop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(time.Duration(b.cfg.FlushIntervalS) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Flush(ctx)
		}
	}
}

// Add accepts a reading per §4.5's acceptance contract: attempt a
// synchronous sink write if the sink is believed available and
// connected; on a failed write flip cloud_available false. Whenever the
// reading was not written to the sink, persist it durably with
// synced=false.
func (b *Buffer) Add(ctx context.Context, r sink.Reading) error {
	if b.cloudAvailable.Load() && b.dest != nil && b.dest.IsConnected() {
		err := b.dest.WritePoint(ctx, sink.Point{
			SensorID:   r.SensorID,
			SensorName: r.SensorName,
			Value:      r.Value,
			Raw:        &r.Raw,
			Ts:         r.Ts,
		})
		if err == nil {
			return nil
		}
		b.cloudAvailable.Store(false)
		logging.Warn("sink write failed, falling back to durable buffer", "sensor_id", r.SensorID, "error", err)
	}
	_, err := b.store.Append(ctx, r)
	return err
}

// Flush drains up to batch_size unsynced readings in ascending timestamp
// order and submits them to the sink (§4.5). Returns the number of rows
// successfully marked synced.
func (b *Buffer) Flush(ctx context.Context) int {
	readings, err := b.store.SelectUnsynced(ctx, b.cfg.BatchSize)
	if err != nil {
		logging.Error("buffer: select unsynced failed", "error", err)
		return 0
	}
	if len(readings) == 0 {
		b.cloudAvailable.Store(true)
		return 0
	}
	if b.dest == nil {
		b.cloudAvailable.Store(false)
		return 0
	}

	points := make([]sink.Point, len(readings))
	for i, r := range readings {
		raw := r.Raw
		points[i] = sink.Point{SensorID: r.SensorID, SensorName: r.SensorName, Value: r.Value, Raw: &raw, Ts: r.Ts}
	}

	written, err := b.dest.WriteBatch(ctx, points)
	if err != nil || written == 0 {
		b.cloudAvailable.Store(false)
		return 0
	}

	ids := make([]int64, 0, len(readings))
	for i := 0; i < written && i < len(readings); i++ {
		ids = append(ids, readings[i].ID)
	}
	if err := b.store.MarkSynced(ctx, ids, time.Now().Unix()); err != nil {
		logging.Error("buffer: mark synced failed", "error", err)
		return 0
	}
	b.cloudAvailable.Store(true)
	return len(ids)
}

// GC deletes synced rows older than the configured horizon.
func (b *Buffer) GC(ctx context.Context) (int64, error) {
	return b.CleanupSynced(ctx, time.Duration(b.cfg.GCHorizonH)*time.Hour)
}

// CleanupSynced implements §6's cleanup_synced(horizon): delete synced
// rows older than now-horizon, for a caller that wants a horizon other
// than the configured default (GC uses the configured one).
func (b *Buffer) CleanupSynced(ctx context.Context, horizon time.Duration) (int64, error) {
	cutoff := time.Now().Add(-horizon).Unix()
	return b.store.DeleteSyncedOlderThan(ctx, cutoff)
}

// QueueStats is get_queue_stats's result shape (§6).
type QueueStats struct {
	UnsyncedCount int64
	SyncedCount   int64
}

// GetQueueStats surfaces the store's unsynced/synced row counts.
func (b *Buffer) GetQueueStats(ctx context.Context) (QueueStats, error) {
	unsynced, err := b.store.CountUnsynced(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	synced, err := b.store.CountSynced(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{UnsyncedCount: unsynced, SyncedCount: synced}, nil
}

func (b *Buffer) CloudAvailable() bool {
	return b.cloudAvailable.Load()
}
