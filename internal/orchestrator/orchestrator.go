// Package orchestrator implements §4.4: the registry of live driver
// instances, hot add/remove/restart/reconfigure, formula application on
// every raw reading, and fan-out to subscribers. Grounded on the
// teacher's edgeStateStore RWMutex-guarded map (internal/state/edge-state.go),
// generalized from a static device-state cache to a registry that is
// mutated by CRUD operations while concurrently read by the callback
// delivery path, per §5's shared-resource policy: "the driver registry
// is mutated only by the orchestrator's CRUD methods; readers ... acquire
// a shared view."
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgehub/core/internal/bus"
	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
	"github.com/edgehub/core/internal/formula"
	"github.com/edgehub/core/internal/logging"
)

type entry struct {
	def     config.SensorDefinition
	formula string
	sup     *driver.Supervisor
}

// Orchestrator is safe for concurrent use by CRUD callers and by the
// driver completion paths that invoke its internal value/status/error
// handlers.
type Orchestrator struct {
	factory *Factory
	engine  *formula.Engine
	bus     *bus.Bus

	mu      sync.RWMutex
	entries map[int64]*entry
}

func New(factory *Factory, engine *formula.Engine, b *bus.Bus) *Orchestrator {
	return &Orchestrator{
		factory: factory,
		engine:  engine,
		bus:     b,
		entries: make(map[int64]*entry),
	}
}

// AddSensor constructs a driver for definition's protocol, wires its
// callbacks, and starts it. If a sensor with the same id already exists
// it is removed first (remove_sensor semantics), per §4.4. A failure to
// resolve the protocol or construct the driver leaves the registry empty
// for that id; the driver's own connect attempt happens asynchronously
// in its Supervisor loop and is reported via status/error events rather
// than as a synchronous start-failed return, since this port's
// Supervisor always starts its loop in the background.
func (o *Orchestrator) AddSensor(ctx context.Context, def config.SensorDefinition) error {
	if err := def.Normalize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	o.RemoveSensor(def.SensorID)

	drv, isEventDriven, err := o.factory.Build(def)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	pollInterval := time.Duration(def.PollIntervalMs) * time.Millisecond
	timeout := time.Duration(def.TimeoutMs) * time.Millisecond
	sup := driver.NewSupervisor(def.SensorID, drv, pollInterval, timeout, def.RetryCount, isEventDriven)

	if n, ok := drv.(driver.Notifiable); ok {
		n.SetNotifier(sup.DeliverValue)
	}
	if n, ok := drv.(driver.ErrNotifiable); ok {
		n.SetErrNotifier(sup.DeliverError)
	}

	sensorID := def.SensorID
	sup.OnValue(func(ev driver.ValueEvent) { o.handleValue(sensorID, ev) })
	sup.OnStatus(func(ev driver.StatusEvent) { o.handleStatus(sensorID, ev) })
	sup.OnError(func(ev driver.ErrorEvent) { o.handleError(sensorID, ev) })

	e := &entry{def: def, formula: def.DataFormula, sup: sup}
	o.mu.Lock()
	o.entries[sensorID] = e
	o.mu.Unlock()

	sup.Start(ctx)
	return nil
}

// RemoveSensor removes the registry entry, then stops the driver.
// Removal is observable before Stop completes so concurrent writes to
// that id return not-found immediately (§4.4).
func (o *Orchestrator) RemoveSensor(sensorID int64) error {
	o.mu.Lock()
	e, ok := o.entries[sensorID]
	if ok {
		delete(o.entries, sensorID)
	}
	o.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.sup.Stop()
	return nil
}

// UpdateFormula replaces a sensor's formula text in-place; no restart.
func (o *Orchestrator) UpdateFormula(sensorID int64, expr string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[sensorID]
	if !ok {
		return ErrNotFound
	}
	e.formula = expr
	return nil
}

func (o *Orchestrator) RestartSensor(ctx context.Context, sensorID int64) error {
	o.mu.RLock()
	e, ok := o.entries[sensorID]
	o.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	e.sup.Restart(ctx)
	return nil
}

func (o *Orchestrator) WriteSensor(ctx context.Context, sensorID int64, value float64) error {
	o.mu.RLock()
	e, ok := o.entries[sensorID]
	o.mu.RUnlock()
	if !ok {
		return ErrNotRunning
	}
	return e.sup.Write(ctx, value)
}

func (o *Orchestrator) GetStatus(sensorID int64) (driver.Status, error) {
	o.mu.RLock()
	e, ok := o.entries[sensorID]
	o.mu.RUnlock()
	if !ok {
		return driver.Status{}, ErrNotFound
	}
	return e.sup.GetStatus(), nil
}

func (o *Orchestrator) GetAllStatus() map[int64]driver.Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[int64]driver.Status, len(o.entries))
	for id, e := range o.entries {
		out[id] = e.sup.GetStatus()
	}
	return out
}

// Stop signals every driver to stop and waits for each (bounded
// individually to 5s by Supervisor.Stop, §5).
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	entries := make([]*entry, 0, len(o.entries))
	for _, e := range o.entries {
		entries = append(entries, e)
	}
	o.entries = make(map[int64]*entry)
	o.mu.Unlock()

	var g errgroup.Group
	for _, e := range entries {
		e := e
		g.Go(func() error {
			e.sup.Stop()
			return nil
		})
	}
	g.Wait()
}

// handleValue implements the value pipeline: look up the formula,
// evaluate it against raw, and publish (sensor_id, raw, processed, ts)
// to every subscriber. A formula failure logs and substitutes raw as
// the processed value rather than dropping the event (§4.4 step 2).
func (o *Orchestrator) handleValue(sensorID int64, ev driver.ValueEvent) {
	o.mu.RLock()
	e, ok := o.entries[sensorID]
	o.mu.RUnlock()
	if !ok {
		return
	}

	processed := ev.Raw
	if v, err := o.engine.Evaluate(e.formula, ev.Raw); err != nil {
		logging.Warn("formula evaluation failed, substituting raw", "sensor_id", sensorID, "formula", e.formula, "error", err)
	} else {
		processed = v
	}

	o.bus.PublishValue(bus.ProcessedValue{
		SensorID:   sensorID,
		SensorName: e.def.SensorName,
		Raw:        ev.Raw,
		Processed:  processed,
		Ts:         ev.Ts,
	})
}

func (o *Orchestrator) handleStatus(sensorID int64, ev driver.StatusEvent) {
	o.bus.PublishStatus(bus.StatusChange{SensorID: sensorID, State: ev.State.String(), Err: ev.Err})
}

func (o *Orchestrator) handleError(sensorID int64, ev driver.ErrorEvent) {
	o.bus.PublishError(bus.ErrorEvent{SensorID: sensorID, Err: ev.Err})
}
