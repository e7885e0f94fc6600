// Package bus implements §4.7's fan-out bus: one typed subscriber list
// per event kind (processed value, status change, error), delivered in
// registration order with each subscriber isolated from the others' and
// from the source driver's panics/errors. Grounded on the Supervisor's
// own callback-isolation pattern (internal/driver/supervisor.go) and
// generalized from per-sensor lists to a shared, orchestrator-wide bus.
package bus

import (
	"sync"

	"github.com/edgehub/core/internal/logging"
)

// ProcessedValue is what the orchestrator delivers to value subscribers
// after applying a sensor's formula to the driver's raw reading.
type ProcessedValue struct {
	SensorID   int64
	SensorName string
	Raw        float64
	Processed  float64
	Ts         int64
}

type StatusChange struct {
	SensorID int64
	State    string
	Err      error
}

type ErrorEvent struct {
	SensorID int64
	Err      error
}

type ValueSubscriber func(ProcessedValue)
type StatusSubscriber func(StatusChange)
type ErrorSubscriber func(ErrorEvent)

// Bus is safe for concurrent Subscribe and Publish calls; Subscribe
// while events are in flight is supported since subscriber lists are
// copy-on-write under a read lock for delivery.
type Bus struct {
	mu        sync.RWMutex
	valueSubs []ValueSubscriber
	statusSubs []StatusSubscriber
	errorSubs []ErrorSubscriber
}

func New() *Bus {
	return &Bus{}
}

func (b *Bus) SubscribeValue(sub ValueSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.valueSubs = append(b.valueSubs, sub)
}

func (b *Bus) SubscribeStatus(sub StatusSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusSubs = append(b.statusSubs, sub)
}

func (b *Bus) SubscribeError(sub ErrorSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorSubs = append(b.errorSubs, sub)
}

func (b *Bus) PublishValue(ev ProcessedValue) {
	b.mu.RLock()
	subs := b.valueSubs
	b.mu.RUnlock()
	for _, sub := range subs {
		safeCall(ev.SensorID, func() { sub(ev) })
	}
}

func (b *Bus) PublishStatus(ev StatusChange) {
	b.mu.RLock()
	subs := b.statusSubs
	b.mu.RUnlock()
	for _, sub := range subs {
		safeCall(ev.SensorID, func() { sub(ev) })
	}
}

func (b *Bus) PublishError(ev ErrorEvent) {
	b.mu.RLock()
	subs := b.errorSubs
	b.mu.RUnlock()
	for _, sub := range subs {
		safeCall(ev.SensorID, func() { sub(ev) })
	}
}

func safeCall(sensorID int64, f func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("bus subscriber panicked", "sensor_id", sensorID, "panic", r)
		}
	}()
	f()
}
