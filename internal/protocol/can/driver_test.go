package can

import (
	"context"
	"testing"

	canpkg "go.einride.tech/can"

	"github.com/edgehub/core/internal/config"
)

func TestNewRejectsOutOfBoundsSignal(t *testing.T) {
	sensor := config.SensorDefinition{
		SensorID: 1,
		ConnectionParams: map[string]any{
			"frame_id":    100,
			"byte_offset": 6,
			"byte_length": 4,
		},
	}
	if _, err := New(sensor); err == nil {
		t.Fatal("expected error for signal overflowing frame")
	}
}

func TestExtractUnsignedTwoBytes(t *testing.T) {
	sensor := config.SensorDefinition{
		SensorID: 1,
		ConnectionParams: map[string]any{
			"frame_id":    100,
			"byte_offset": 0,
			"byte_length": 2,
		},
	}
	d, err := New(sensor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frame := canpkg.Frame{ID: 100, Length: 8}
	frame.Data[0] = 0x01
	frame.Data[1] = 0x02
	v, err := d.extract(frame)
	if err != nil || v != 0x0102 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

func TestExtractSignedByte(t *testing.T) {
	sensor := config.SensorDefinition{
		SensorID: 1,
		ConnectionParams: map[string]any{
			"frame_id":    100,
			"byte_offset": 0,
			"byte_length": 1,
			"signed":      true,
		},
	}
	d, err := New(sensor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frame := canpkg.Frame{ID: 100, Length: 8}
	frame.Data[0] = 0xFE // -2
	v, err := d.extract(frame)
	if err != nil || v != -2 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

func TestReadWithoutConnectIsNotConnected(t *testing.T) {
	sensor := config.SensorDefinition{SensorID: 1, ConnectionParams: map[string]any{"frame_id": 1}}
	d, err := New(sensor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := d.Read(context.Background()); err == nil {
		t.Fatal("expected not-connected error")
	}
}
