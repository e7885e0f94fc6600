// Package mqttdrv implements the MQTT protocol family on top of
// internal/messaging's Broker, the teacher's own paho.mqtt.golang
// wrapper (internal/messaging/broker.go). MQTT is event-driven (§4.2):
// Connect subscribes to the sensor's value topic and a background
// handler delivers every message straight to the Supervisor, bypassing
// the poll cadence. Write publishes to the sensor's command topic,
// mirroring the teacher's device-command publishing in
// internal/modbus/commands.go and internal/mqtt/publish.go.
package mqttdrv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
	"github.com/edgehub/core/internal/messaging"
)

type Notifier = driver.ValueNotifier
type ErrNotifier = driver.ErrNotifier

type Driver struct {
	sensorID   int64
	broker     messaging.Broker
	valueTopic string
	cmdTopic   string
	qos        messaging.QoS

	mu       sync.RWMutex
	sub      messaging.Subscription
	lastVal  float64
	notifier Notifier
	errNotif ErrNotifier
}

// New builds a driver against an already-constructed broker (shared
// across all MQTT sensors, the way the teacher shares one MsgBroker
// across devices). connection_params supplies value_topic and,
// optionally, command_topic for writable sensors.
func New(sensor config.SensorDefinition, broker messaging.Broker) (*Driver, error) {
	valueTopic, _ := sensor.ConnectionParams["value_topic"].(string)
	if valueTopic == "" {
		return nil, fmt.Errorf("mqttdrv: connection_params.value_topic is required")
	}
	cmdTopic, _ := sensor.ConnectionParams["command_topic"].(string)
	qos := messaging.AtLeastOnce
	if q, ok := sensor.ConnectionParams["qos"].(float64); ok {
		qos = messaging.QoS(byte(q))
	}
	return &Driver{
		sensorID:   sensor.SensorID,
		broker:     broker,
		valueTopic: valueTopic,
		cmdTopic:   cmdTopic,
		qos:        qos,
	}, nil
}

func (d *Driver) SetNotifier(n Notifier)       { d.mu.Lock(); d.notifier = n; d.mu.Unlock() }
func (d *Driver) SetErrNotifier(n ErrNotifier) { d.mu.Lock(); d.errNotif = n; d.mu.Unlock() }

func (d *Driver) Connect(ctx context.Context) error {
	if !d.broker.IsConnected() {
		if err := d.broker.Connect(ctx); err != nil {
			return fmt.Errorf("%w: %v", driver.ErrConnection, err)
		}
	}
	sub, err := d.broker.Subscribe(ctx, d.valueTopic, d.qos, d.onMessage)
	if err != nil {
		return fmt.Errorf("%w: %v", driver.ErrConnection, err)
	}
	d.mu.Lock()
	d.sub = sub
	d.mu.Unlock()
	return nil
}

func (d *Driver) Disconnect() {
	d.mu.Lock()
	sub := d.sub
	d.sub = nil
	d.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe(context.Background())
	}
}

func (d *Driver) onMessage(ctx context.Context, topic string, payload []byte) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		d.deliverErr(fmt.Errorf("%w: payload %q is not numeric: %v", driver.ErrRead, payload, err))
		return
	}
	d.mu.Lock()
	d.lastVal = v
	notifier := d.notifier
	d.mu.Unlock()
	if notifier != nil {
		notifier(v)
	}
}

func (d *Driver) deliverErr(err error) {
	d.mu.RLock()
	n := d.errNotif
	d.mu.RUnlock()
	if n != nil {
		n(err)
	}
}

// Read returns the last value received on value_topic; the event-driven
// poll loop never calls it, but it gives a synchronous accessor for tests
// and for any caller wanting the current cached reading.
func (d *Driver) Read(ctx context.Context) (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sub == nil {
		return 0, driver.ErrNotConnected
	}
	return d.lastVal, nil
}

func (d *Driver) Write(ctx context.Context, value float64) error {
	if d.cmdTopic == "" {
		return driver.ErrUnsupportedWrite
	}
	payload := []byte(strconv.FormatFloat(value, 'f', -1, 64))
	if err := d.broker.Publish(ctx, d.cmdTopic, d.qos, false, payload); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrWrite, err)
	}
	return nil
}

var _ driver.Driver = (*Driver)(nil)
