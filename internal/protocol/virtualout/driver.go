// Package virtualout implements the VIRTUAL_OUTPUT protocol: a sensor
// with no physical backing whose "reading" is simply the last value
// written to it. Grounded on the spec's own resolution of the
// automation/virtual-output recursion open question (spec.md §9): a
// virtual-output write is a genuine reading delivered through the normal
// value pipeline, and cooldown in the automation engine is the only
// thing that stops write -> read -> write from looping forever.
package virtualout

import (
	"context"
	"sync"

	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
)

// Notifier is how the driver pushes a write to its Supervisor as an
// event-driven value delivery, since VIRTUAL_OUTPUT is one of the
// event-driven protocol families (§4.2) whose poll loop never calls Read.
type Notifier = driver.ValueNotifier

type Driver struct {
	sensorID int64

	mu       sync.RWMutex
	value    float64
	notifier Notifier
}

func New(sensor config.SensorDefinition) *Driver {
	return &Driver{sensorID: sensor.SensorID}
}

// SetNotifier wires the driver to its Supervisor's DeliverValue, filled
// in after the Supervisor is constructed (the driver must exist before
// the Supervisor that wraps it).
func (d *Driver) SetNotifier(n Notifier) {
	d.mu.Lock()
	d.notifier = n
	d.mu.Unlock()
}

func (d *Driver) Connect(ctx context.Context) error { return nil }
func (d *Driver) Disconnect()                       {}

func (d *Driver) Read(ctx context.Context) (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value, nil
}

// Write records the new state and, when a notifier is set, delivers it
// as a reading through the notifier.
func (d *Driver) Write(ctx context.Context, value float64) error {
	d.mu.Lock()
	d.value = value
	notifier := d.notifier
	d.mu.Unlock()

	if notifier != nil {
		notifier(value)
	}
	return nil
}

var _ driver.Driver = (*Driver)(nil)
