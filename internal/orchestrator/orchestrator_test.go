package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/edgehub/core/internal/bus"
	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/formula"
)

func newTestOrchestrator() (*Orchestrator, *bus.Bus) {
	b := bus.New()
	o := New(NewFactory(nil), formula.NewEngine(), b)
	return o, b
}

func TestAddSensorStartsAndDeliversValue(t *testing.T) {
	o, b := newTestOrchestrator()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got bus.ProcessedValue
	done := make(chan struct{}, 1)
	b.SubscribeValue(func(ev bus.ProcessedValue) {
		got = ev
		select {
		case done <- struct{}{}:
		default:
		}
	})

	def := config.SensorDefinition{
		SensorID:       1,
		SensorName:     "virtual1",
		Protocol:       config.ProtocolVirtualOutput,
		DataFormula:    "val*2",
		PollIntervalMs: 1000,
		TimeoutMs:      1000,
		RetryCount:     3,
	}
	if err := o.AddSensor(ctx, def); err != nil {
		t.Fatalf("AddSensor: %v", err)
	}
	defer o.Stop()

	if err := o.WriteSensor(ctx, 1, 21); err != nil {
		t.Fatalf("WriteSensor: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for processed value")
	}

	if got.SensorID != 1 || got.SensorName != "virtual1" || got.Raw != 21 || got.Processed != 42 {
		t.Fatalf("unexpected processed value: %+v", got)
	}
}

func TestRemoveSensorIsObservableBeforeStopCompletes(t *testing.T) {
	o, _ := newTestOrchestrator()
	ctx := context.Background()
	def := config.SensorDefinition{
		SensorID: 2, SensorName: "v2", Protocol: config.ProtocolVirtualOutput,
		DataFormula: "val", PollIntervalMs: 1000, TimeoutMs: 1000, RetryCount: 3,
	}
	if err := o.AddSensor(ctx, def); err != nil {
		t.Fatalf("AddSensor: %v", err)
	}
	if err := o.RemoveSensor(2); err != nil {
		t.Fatalf("RemoveSensor: %v", err)
	}
	if err := o.WriteSensor(ctx, 2, 1); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning after removal, got %v", err)
	}
	if err := o.RemoveSensor(2); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double remove, got %v", err)
	}
}

func TestUpdateFormulaAppliesWithoutRestart(t *testing.T) {
	o, b := newTestOrchestrator()
	ctx := context.Background()
	def := config.SensorDefinition{
		SensorID: 3, SensorName: "v3", Protocol: config.ProtocolVirtualOutput,
		DataFormula: "val", PollIntervalMs: 1000, TimeoutMs: 1000, RetryCount: 3,
	}
	if err := o.AddSensor(ctx, def); err != nil {
		t.Fatalf("AddSensor: %v", err)
	}
	defer o.Stop()

	if err := o.UpdateFormula(3, "val*10"); err != nil {
		t.Fatalf("UpdateFormula: %v", err)
	}

	var got bus.ProcessedValue
	done := make(chan struct{}, 1)
	b.SubscribeValue(func(ev bus.ProcessedValue) {
		got = ev
		select {
		case done <- struct{}{}:
		default:
		}
	})
	if err := o.WriteSensor(ctx, 3, 5); err != nil {
		t.Fatalf("WriteSensor: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for processed value")
	}
	if got.Processed != 50 {
		t.Fatalf("expected updated formula to apply, got %+v", got)
	}
}

func TestAddSensorUnknownProtocolRejected(t *testing.T) {
	o, _ := newTestOrchestrator()
	def := config.SensorDefinition{SensorID: 4, SensorName: "bad", Protocol: "bogus", DataFormula: "val", PollIntervalMs: 1000, TimeoutMs: 1000, RetryCount: 3}
	if err := o.AddSensor(context.Background(), def); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestGetStatusNotFound(t *testing.T) {
	o, _ := newTestOrchestrator()
	if _, err := o.GetStatus(999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
