package orchestrator

import (
	"fmt"

	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
	"github.com/edgehub/core/internal/messaging"
	"github.com/edgehub/core/internal/protocol/can"
	"github.com/edgehub/core/internal/protocol/modbus"
	"github.com/edgehub/core/internal/protocol/mqttdrv"
	"github.com/edgehub/core/internal/protocol/sysmetrics"
	"github.com/edgehub/core/internal/protocol/virtualout"
)

// eventDriven reports which protocol families override the poll loop per
// §4.2 (MQTT, CAN, VIRTUAL_OUTPUT); the rest run the ordinary poll cadence.
func eventDriven(p config.Protocol) bool {
	switch p {
	case config.ProtocolMQTT, config.ProtocolCAN, config.ProtocolVirtualOutput:
		return true
	default:
		return false
	}
}

// Factory resolves a sensor's protocol enum to a concrete driver.Driver,
// per add_sensor's "driver constructed with the protocol class resolved
// from the enum" (§4.4). One Factory is shared across the orchestrator's
// lifetime so the MQTT broker connection is reused across sensors.
type Factory struct {
	broker messaging.Broker
}

func NewFactory(broker messaging.Broker) *Factory {
	return &Factory{broker: broker}
}

// Build returns the driver and whether it runs in event-driven mode.
func (f *Factory) Build(sensor config.SensorDefinition) (driver.Driver, bool, error) {
	switch sensor.Protocol {
	case config.ProtocolModbusTCP, config.ProtocolModbusRTU:
		d, err := modbus.New(sensor)
		if err != nil {
			return nil, false, err
		}
		return d, false, nil
	case config.ProtocolCAN:
		d, err := can.New(sensor)
		if err != nil {
			return nil, false, err
		}
		return d, true, nil
	case config.ProtocolMQTT:
		if f.broker == nil {
			return nil, false, fmt.Errorf("orchestrator: MQTT sensor %d requires a broker", sensor.SensorID)
		}
		d, err := mqttdrv.New(sensor, f.broker)
		if err != nil {
			return nil, false, err
		}
		return d, true, nil
	case config.ProtocolSystem:
		d, err := sysmetrics.New(sensor)
		if err != nil {
			return nil, false, err
		}
		return d, false, nil
	case config.ProtocolVirtualOutput:
		return virtualout.New(sensor), true, nil
	default:
		return nil, false, fmt.Errorf("orchestrator: unknown protocol %q", sensor.Protocol)
	}
}
