package sysmetrics

import (
	"context"
	"testing"

	"github.com/edgehub/core/internal/config"
)

func TestReadMemPercent(t *testing.T) {
	sensor := config.SensorDefinition{SensorID: 1, ConnectionParams: map[string]any{"metric": "mem_percent"}}
	d, err := New(sensor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := d.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v < 0 || v > 100 {
		t.Fatalf("expected percent in [0,100], got %v", v)
	}
}

func TestUnknownMetricRejected(t *testing.T) {
	sensor := config.SensorDefinition{SensorID: 1, ConnectionParams: map[string]any{"metric": "bogus"}}
	if _, err := New(sensor); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}
