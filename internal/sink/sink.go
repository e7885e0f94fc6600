// Package sink declares the external collaborators §6 names: a
// time-series sink the buffer drains into, and the narrow relational
// store slice the buffer needs for durable, FIFO-ordered persistence.
// These are the boundary the core consumes; concrete adapters (sqlite,
// an in-memory fake for tests) live alongside the interfaces.
package sink

import "context"

// Point is one sample the buffer submits to the time-series sink.
type Point struct {
	SensorID   int64
	SensorName string
	Value      float64
	Raw        *float64
	Ts         int64
	Tags       map[string]string
}

// Statistics is query_statistics's result shape.
type Statistics struct {
	Mean   float64
	Min    float64
	Max    float64
	StdDev float64
	Count  int64
}

// TimeSeriesSink is the cloud/local time-series backend the buffer
// drains confirmed-durable readings into (§6).
type TimeSeriesSink interface {
	WritePoint(ctx context.Context, p Point) error
	WriteBatch(ctx context.Context, points []Point) (written int, err error)
	QueryStatistics(ctx context.Context, sensorName string, start, stop int64) (Statistics, error)
	IsConnected() bool
}

// Reading is a row in the buffer's durable store.
type Reading struct {
	ID         int64
	SensorID   int64
	SensorName string
	Value      float64
	Raw        float64
	Ts         int64
	Synced     bool
	SyncedAt   int64
}

// RelationalStore is the narrow slice of persistence the buffer relies
// on (§6): append a row; select unsynced ordered by timestamp with
// limit; mark rows synced; delete synced rows older than a cutoff;
// count unsynced/synced rows.
type RelationalStore interface {
	Append(ctx context.Context, r Reading) (int64, error)
	SelectUnsynced(ctx context.Context, limit int) ([]Reading, error)
	MarkSynced(ctx context.Context, ids []int64, syncedAt int64) error
	DeleteSyncedOlderThan(ctx context.Context, cutoff int64) (int64, error)
	CountUnsynced(ctx context.Context) (int64, error)
	CountSynced(ctx context.Context) (int64, error)
}
