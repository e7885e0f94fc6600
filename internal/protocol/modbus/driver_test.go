package modbus

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
	"github.com/tbrandon/mbserver"
)

func TestParseConnParamsDefaults(t *testing.T) {
	p, err := parseConnParams(map[string]any{"address": "localhost:1502", "register": 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.mode != ModeTCP || p.kind != KindHoldingRegister || p.count != 1 || p.dataType != TypeUint16 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestParseConnParamsRejectsMissingAddress(t *testing.T) {
	if _, err := parseConnParams(map[string]any{"register": 10}); err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestDecodeFloat32CombinesTwoRegisters(t *testing.T) {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, 0x42280000) // 42.0
	v, err := decode(TypeFloat32, 2, raw)
	if err != nil || v != 42.0 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

func TestDecodeInt16Negative(t *testing.T) {
	raw := []byte{0xFF, 0xFE} // -2
	v, err := decode(TypeInt16, 1, raw)
	if err != nil || v != -2 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

func TestDecodeCountTwoReconstructsHighLow(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x00, 0x02} // high=1, low=2 -> (1<<16)|2
	v, err := decode(TypeUint32, 2, raw)
	if err != nil || v != 65538 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

func TestDecodeCountGreaterThanTwoFallsBackToFirstRegister(t *testing.T) {
	raw := []byte{0x00, 0x2A, 0xFF, 0xFF, 0x00, 0x00} // 3 registers, first is 42
	v, err := decode(TypeUint16, 3, raw)
	if err != nil || v != 42 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

// TestDecodeScenario6ThirtyTwoBit mirrors the spec's own worked example:
// registers [0x0001, 0x2345] with count=2 reconstruct to 74565.0.
func TestDecodeScenario6ThirtyTwoBit(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x23, 0x45}
	v, err := decode(TypeUint32, 2, raw)
	if err != nil || v != 74565.0 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

func TestDecodeBoolFirstBit(t *testing.T) {
	v, err := decodeBool([]byte{0x01})
	if err != nil || v != 1.0 {
		t.Fatalf("got %v err=%v", v, err)
	}
	v, err = decodeBool([]byte{0xFE})
	if err != nil || v != 0.0 {
		t.Fatalf("got %v err=%v", v, err)
	}
}

// TestDriverAgainstSimulatedSlave exercises Connect/Read/Write against a
// real mbserver TCP slave, the same simulator the teacher's mb-sim tool
// uses (cmd/tools/mb-sim/main.go), instead of mocking the wire protocol.
func TestDriverAgainstSimulatedSlave(t *testing.T) {
	srv := mbserver.NewServer()
	srv.HoldingRegisters[5] = 777
	srv.Coils[0] = 1
	if err := srv.ListenTCP("127.0.0.1:15020"); err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer srv.Close()

	sensor := config.SensorDefinition{
		SensorID: 1,
		Protocol: config.ProtocolModbusTCP,
		ConnectionParams: map[string]any{
			"address":  "127.0.0.1:15020",
			"register": 5,
			"function": "holding",
		},
	}
	d, err := New(sensor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Disconnect()

	raw, err := d.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if raw != 777 {
		t.Fatalf("expected 777, got %v", raw)
	}

	if err := d.Write(ctx, 42); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err = d.Read(ctx)
	if err != nil {
		t.Fatalf("Read after write: %v", err)
	}
	if raw != 42 {
		t.Fatalf("expected 42 after write, got %v", raw)
	}
}

func TestInputDriverWriteUnsupportedWhenReadOnlyFunction(t *testing.T) {
	sensor := config.SensorDefinition{
		SensorID: 2,
		Protocol: config.ProtocolModbusTCP,
		ConnectionParams: map[string]any{
			"address":        "127.0.0.1:15021",
			"register":       0,
			"function":       "input",
			"write_function": "input",
		},
	}
	d, err := New(sensor)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Write(context.Background(), 1); err != driver.ErrUnsupportedWrite {
		t.Fatalf("expected ErrUnsupportedWrite, got %v", err)
	}
}
