package virtualout

import (
	"context"
	"testing"

	"github.com/edgehub/core/internal/config"
)

func TestWriteIsReadableAndNotified(t *testing.T) {
	d := New(config.SensorDefinition{SensorID: 7})
	var delivered float64
	var calls int
	d.SetNotifier(func(v float64) {
		delivered = v
		calls++
	})

	if err := d.Write(context.Background(), 12); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := d.Read(context.Background())
	if err != nil || v != 12 {
		t.Fatalf("got %v err=%v", v, err)
	}
	if calls != 1 || delivered != 12 {
		t.Fatalf("expected one notification of 12, got calls=%d delivered=%v", calls, delivered)
	}
}

func TestWriteWithoutNotifierStillRecords(t *testing.T) {
	d := New(config.SensorDefinition{SensorID: 8})
	if err := d.Write(context.Background(), 5); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, _ := d.Read(context.Background())
	if v != 5 {
		t.Fatalf("expected 5, got %v", v)
	}
}
