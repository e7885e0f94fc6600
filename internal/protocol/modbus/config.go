package modbus

import (
	"fmt"
	"time"

	"github.com/edgehub/core/internal/util"
)

// Mode selects which goburrow/modbus transport handler a sensor's
// connection_params ask for.
type Mode string

const (
	ModeTCP Mode = "tcp"
	ModeRTU Mode = "rtu"
)

// RegisterKind is the Modbus object type a sensor is bound to, mirroring
// the four read function codes the teacher's BusPoller dispatches on
// (internal/modbus/client.go).
type RegisterKind string

const (
	KindHoldingRegister RegisterKind = "holding"
	KindInputRegister    RegisterKind = "input"
	KindCoil             RegisterKind = "coil"
	KindDiscreteInput    RegisterKind = "discrete"
)

// DataType controls signedness/float reinterpretation of the register(s)
// count selects (§4.2); it does not change how many registers are read
// or reconstructed — that is count's job alone.
type DataType string

const (
	TypeUint16  DataType = "uint16"
	TypeInt16   DataType = "int16"
	TypeUint32  DataType = "uint32"
	TypeInt32   DataType = "int32"
	TypeFloat32 DataType = "float32"
)

// connParams is the parsed form of a Modbus sensor's
// config.SensorDefinition.ConnectionParams map.
type connParams struct {
	mode     Mode
	address  string // TCP host:port or RTU serial device path
	baud     int
	dataBits int
	parity   string
	stopBits int
	slaveID  byte
	kind     RegisterKind
	register uint16
	count    uint16
	dataType DataType
	writeKind RegisterKind // defaults to kind; only coil and holding are writable
}

func parseConnParams(raw map[string]any) (connParams, error) {
	p := connParams{
		mode:     ModeTCP,
		baud:     9600,
		dataBits: 8,
		parity:   "N",
		stopBits: 1,
		slaveID:  1,
		kind:     KindHoldingRegister,
		count:    1,
		dataType: TypeUint16,
	}

	if v, ok := raw["mode"]; ok {
		p.mode = Mode(fmt.Sprintf("%v", v))
	}
	if p.mode != ModeTCP && p.mode != ModeRTU {
		return p, fmt.Errorf("modbus: unknown mode %q", p.mode)
	}

	addr, _ := raw["address"].(string)
	if addr == "" {
		return p, fmt.Errorf("modbus: connection_params.address is required")
	}
	p.address = addr

	if v, ok := raw["baud"]; ok {
		p.baud = util.ToInt(v)
	}
	if v, ok := raw["data_bits"]; ok {
		p.dataBits = util.ToInt(v)
	}
	if v, ok := raw["parity"]; ok {
		p.parity = fmt.Sprintf("%v", v)
	}
	if v, ok := raw["stop_bits"]; ok {
		p.stopBits = util.ToInt(v)
	}
	if v, ok := raw["slave_id"]; ok {
		p.slaveID = byte(util.ToInt(v))
	}
	if v, ok := raw["function"]; ok {
		p.kind = RegisterKind(fmt.Sprintf("%v", v))
	}
	switch p.kind {
	case KindHoldingRegister, KindInputRegister, KindCoil, KindDiscreteInput:
	default:
		return p, fmt.Errorf("modbus: unknown function %q", p.kind)
	}
	if v, ok := raw["register"]; ok {
		p.register = uint16(util.ToInt(v))
	} else {
		return p, fmt.Errorf("modbus: connection_params.register is required")
	}
	if v, ok := raw["count"]; ok {
		p.count = uint16(util.ToInt(v))
	}
	if p.count == 0 {
		p.count = 1
	}
	if v, ok := raw["data_type"]; ok {
		p.dataType = DataType(fmt.Sprintf("%v", v))
	}
	switch p.dataType {
	case TypeUint16, TypeInt16, TypeUint32, TypeInt32, TypeFloat32:
	default:
		return p, fmt.Errorf("modbus: unknown data_type %q", p.dataType)
	}

	p.writeKind = p.kind
	if v, ok := raw["write_function"]; ok {
		p.writeKind = RegisterKind(fmt.Sprintf("%v", v))
	}

	return p, nil
}

// wordCount is the register/bit count passed to the goburrow read call:
// connection_params.count, verbatim (§4.2, original_source's
// ModbusDriver.read, which always reads `self.count` registers or bits
// regardless of register_type).
func (p connParams) wordCount() uint16 {
	return p.count
}

func (p connParams) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}
