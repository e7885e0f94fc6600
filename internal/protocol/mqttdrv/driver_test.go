package mqttdrv

import (
	"context"
	"testing"

	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/driver"
	"github.com/edgehub/core/internal/messaging"
)

type fakeSub struct{ unsubscribed bool }

func (s *fakeSub) Unsubscribe(ctx context.Context) error {
	s.unsubscribed = true
	return nil
}

type fakeBroker struct {
	connected bool
	handler   func(context.Context, string, []byte)
	published []string
	sub       *fakeSub
}

func (b *fakeBroker) Connect(ctx context.Context) error { b.connected = true; return nil }
func (b *fakeBroker) Close(ctx context.Context) error   { return nil }
func (b *fakeBroker) Publish(ctx context.Context, topic string, qos messaging.QoS, retain bool, payload []byte) error {
	b.published = append(b.published, string(payload))
	return nil
}
func (b *fakeBroker) PublishJSON(ctx context.Context, topic string, qos messaging.QoS, retain bool, v interface{}) error {
	return nil
}
func (b *fakeBroker) Subscribe(ctx context.Context, topic string, qos messaging.QoS, handler func(context.Context, string, []byte)) (messaging.Subscription, error) {
	b.handler = handler
	b.sub = &fakeSub{}
	return b.sub, nil
}
func (b *fakeBroker) IsConnected() bool         { return b.connected }
func (b *fakeBroker) Topic(parts ...string) string { return "" }

func TestMQTTDriverDeliversOnMessage(t *testing.T) {
	broker := &fakeBroker{}
	sensor := config.SensorDefinition{
		SensorID:         1,
		ConnectionParams: map[string]any{"value_topic": "sensors/temp1"},
	}
	d, err := New(sensor, broker)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var delivered float64
	d.SetNotifier(func(v float64) { delivered = v })

	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	broker.handler(context.Background(), "sensors/temp1", []byte("42.5"))
	if delivered != 42.5 {
		t.Fatalf("expected 42.5, got %v", delivered)
	}

	v, err := d.Read(context.Background())
	if err != nil || v != 42.5 {
		t.Fatalf("got %v err=%v", v, err)
	}

	d.Disconnect()
	if !broker.sub.unsubscribed {
		t.Fatal("expected Disconnect to unsubscribe")
	}
}

func TestMQTTDriverWriteRequiresCommandTopic(t *testing.T) {
	broker := &fakeBroker{}
	sensor := config.SensorDefinition{SensorID: 1, ConnectionParams: map[string]any{"value_topic": "a"}}
	d, err := New(sensor, broker)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Write(context.Background(), 1); err != driver.ErrUnsupportedWrite {
		t.Fatalf("expected ErrUnsupportedWrite, got %v", err)
	}
}

func TestMQTTDriverWritePublishesToCommandTopic(t *testing.T) {
	broker := &fakeBroker{}
	sensor := config.SensorDefinition{
		SensorID: 1,
		ConnectionParams: map[string]any{
			"value_topic":   "a",
			"command_topic": "a/cmd",
		},
	}
	d, err := New(sensor, broker)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Write(context.Background(), 7); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(broker.published) != 1 || broker.published[0] != "7" {
		t.Fatalf("unexpected published payloads: %v", broker.published)
	}
}

func TestMQTTDriverRejectsMissingValueTopic(t *testing.T) {
	if _, err := New(config.SensorDefinition{SensorID: 1}, &fakeBroker{}); err == nil {
		t.Fatal("expected error for missing value_topic")
	}
}
