// Package modbus implements the driver.Driver contract for Modbus TCP and
// RTU sensors. Grounded on the teacher's newer ModbusDeviceClient split
// (internal/modbus/modbus_client.go), generalized from "one client per
// bus serving many devices" to "one client per sensor", and with the
// client's own reconnect backoff removed since driver.Supervisor already
// owns retry pacing (§4.1) — duplicating it here would fight the
// supervisor's state machine.
package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
	goburrow "github.com/goburrow/modbus"
)

// handler is the subset of goburrow/modbus's RTU/TCP handlers the driver
// needs; the TCP handler is wrapped in tcpHandler below, whose Close does
// nothing.
type handler interface {
	goburrow.ClientHandler
	Connect() error
	Close() error
}

type tcpHandler struct {
	*goburrow.TCPClientHandler
}

func (h *tcpHandler) Close() error { return nil }

// Driver reads/writes a single Modbus register/coil for one sensor.
type Driver struct {
	driver.BaseWrite
	sensorID int64
	params   connParams
	handler  handler
	client   goburrow.Client
}

func New(sensor config.SensorDefinition) (*Driver, error) {
	params, err := parseConnParams(sensor.ConnectionParams)
	if err != nil {
		return nil, err
	}
	return &Driver{sensorID: sensor.SensorID, params: params}, nil
}

func (d *Driver) Connect(ctx context.Context) error {
	timeout := d.params.timeout(0)
	if dl, ok := ctx.Deadline(); ok {
		if remaining := deadlineRemaining(dl); remaining > 0 {
			timeout = remaining
		}
	}

	switch d.params.mode {
	case ModeRTU:
		h := goburrow.NewRTUClientHandler(d.params.address)
		h.BaudRate = d.params.baud
		h.DataBits = d.params.dataBits
		h.Parity = d.params.parity
		h.StopBits = d.params.stopBits
		h.SlaveId = d.params.slaveID
		h.Timeout = timeout
		d.handler = h
	case ModeTCP:
		h := goburrow.NewTCPClientHandler(d.params.address)
		h.SlaveId = d.params.slaveID
		h.Timeout = timeout
		d.handler = &tcpHandler{h}
	default:
		return fmt.Errorf("%w: unknown mode %q", driver.ErrConnection, d.params.mode)
	}

	if err := d.handler.Connect(); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrConnection, err)
	}
	d.client = goburrow.NewClient(d.handler)
	return nil
}

func (d *Driver) Disconnect() {
	if d.handler != nil {
		d.handler.Close()
	}
}

func (d *Driver) Read(ctx context.Context) (float64, error) {
	if d.client == nil {
		return 0, driver.ErrNotConnected
	}
	words := d.params.wordCount()

	var raw []byte
	var err error
	switch d.params.kind {
	case KindHoldingRegister:
		raw, err = d.client.ReadHoldingRegisters(d.params.register, words)
	case KindInputRegister:
		raw, err = d.client.ReadInputRegisters(d.params.register, words)
	case KindCoil:
		raw, err = d.client.ReadCoils(d.params.register, words)
	case KindDiscreteInput:
		raw, err = d.client.ReadDiscreteInputs(d.params.register, words)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", driver.ErrRead, err)
	}

	switch d.params.kind {
	case KindCoil, KindDiscreteInput:
		return decodeBool(raw)
	default:
		return decode(d.params.dataType, d.params.count, raw)
	}
}

func (d *Driver) Write(ctx context.Context, value float64) error {
	if d.params.writeKind != KindCoil && d.params.writeKind != KindHoldingRegister {
		return driver.ErrUnsupportedWrite
	}
	if d.client == nil {
		return driver.ErrNotConnected
	}
	switch d.params.writeKind {
	case KindCoil:
		coilVal := uint16(0x0000)
		if value != 0 {
			coilVal = 0xFF00
		}
		if _, err := d.client.WriteSingleCoil(d.params.register, coilVal); err != nil {
			return fmt.Errorf("%w: %v", driver.ErrWrite, err)
		}
		return nil
	case KindHoldingRegister:
		if _, err := d.client.WriteSingleRegister(d.params.register, uint16(value)); err != nil {
			return fmt.Errorf("%w: %v", driver.ErrWrite, err)
		}
		return nil
	default:
		return driver.ErrUnsupportedWrite
	}
}

func deadlineRemaining(dl time.Time) time.Duration {
	return time.Until(dl)
}

// decodeBool returns 0.0/1.0 from the first bit of a coil/discrete-input
// read (§4.2; original_source's ModbusDriver.read: `float(result.bits[0])`).
// goburrow/modbus packs the read bits into bytes LSB-first.
func decodeBool(raw []byte) (float64, error) {
	if len(raw) < 1 {
		return 0, fmt.Errorf("%w: short read for coil/discrete", driver.ErrRead)
	}
	if raw[0]&0x01 != 0 {
		return 1.0, nil
	}
	return 0.0, nil
}

// decode reconstructs a scalar from the registers a holding/input read
// returned, per §4.2 and §8's boundary: count==1 takes the first
// register, count==2 combines the two big-endian registers as
// (high<<16)|low, and count>2 falls back to the first register
// (original_source's ModbusDriver.read resolves count the same way).
// data_type then controls how that intermediate integer (or, for
// count==1, the raw register) is reinterpreted: signed vs. unsigned,
// or float32 bit-reinterpretation for a combined 32-bit value.
func decode(t DataType, count uint16, raw []byte) (float64, error) {
	if len(raw) < 2 {
		return 0, fmt.Errorf("%w: short read for register", driver.ErrRead)
	}

	if count == 2 && len(raw) >= 4 {
		high := binary.BigEndian.Uint16(raw[0:2])
		low := binary.BigEndian.Uint16(raw[2:4])
		combined := uint32(high)<<16 | uint32(low)
		switch t {
		case TypeFloat32:
			return float64(math.Float32frombits(combined)), nil
		case TypeInt32:
			return float64(int32(combined)), nil
		default:
			return float64(combined), nil
		}
	}

	// count == 1, or count > 2 falling back to the first register.
	first := binary.BigEndian.Uint16(raw[0:2])
	switch t {
	case TypeInt16:
		return float64(int16(first)), nil
	default:
		return float64(first), nil
	}
}
