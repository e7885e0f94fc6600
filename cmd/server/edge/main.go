package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgehub/core/internal/automation"
	"github.com/edgehub/core/internal/buffer"
	"github.com/edgehub/core/internal/bus"
	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/formula"
	"github.com/edgehub/core/internal/logging"
	"github.com/edgehub/core/internal/messaging"
	"github.com/edgehub/core/internal/orchestrator"
	"github.com/edgehub/core/internal/sink"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	mqttURL := getenv("MQTT_URL", "tcp://localhost:1883")
	path := getenv("EDGE_CONFIG_PATH", "/etc/edgehub/edge-config.json")
	edgeName := getenv("EDGE_NAME", "edge1")
	dbPath := getenv("EDGE_DB_PATH", "/var/lib/edgehub/buffer.db")

	logging.Init()
	cfg, err := config.LoadEdgeConfig(path)
	if err != nil {
		logging.Fatal("edge config error", "error", err)
	}
	logging.Info("loaded config", "sensors", len(cfg.Sensors), "rules", len(cfg.Rules))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := messaging.NewMsgBroker(messaging.BrokerConfig{
		BrokerURL:        mqttURL,
		ClientName:       edgeName,
		TopicPrefix:      "edgehub/" + edgeName,
		ConnectTimeout:   10 * time.Second,
		PublishTimeout:   5 * time.Second,
		SubscribeTimeout: 5 * time.Second,
	})
	if needsBroker(cfg) {
		if err := broker.Connect(ctx); err != nil {
			logging.Fatal("mqtt connect failed", "error", err)
		}
		defer broker.Close(context.Background())
	}

	store, err := sink.OpenSQLiteStore(dbPath)
	if err != nil {
		logging.Fatal("sqlite store open failed", "path", dbPath, "error", err)
	}
	defer store.Close()

	// No cloud time-series backend ships with this port (see DESIGN.md);
	// the sqlite-backed store is the only durable sink, so readings
	// accumulate locally and never drain until a concrete TimeSeriesSink
	// is wired in its place.
	var cloudSink sink.TimeSeriesSink = sink.NullSink{}

	b := bus.New()
	engine := formula.NewEngine()
	factory := orchestrator.NewFactory(broker)
	orch := orchestrator.New(factory, engine, b)

	for _, def := range cfg.Sensors {
		if !def.IsActive {
			continue
		}
		if err := orch.AddSensor(ctx, def); err != nil {
			logging.Error("add_sensor failed", "sensor_id", def.SensorID, "sensor_name", def.SensorName, "error", err)
		}
	}

	auto := automation.New(engine, orch, cloudSink)
	for _, rule := range cfg.Rules {
		if err := auto.AddRule(rule); err != nil {
			logging.Error("add_rule failed", "rule_id", rule.RuleID, "error", err)
		}
	}
	b.SubscribeValue(auto.OnValue)
	auto.Start(ctx)

	buf := buffer.New(buffer.Config{}, store, cloudSink)
	b.SubscribeValue(func(ev bus.ProcessedValue) {
		if err := buf.Add(ctx, sink.Reading{
			SensorID:   ev.SensorID,
			SensorName: ev.SensorName,
			Value:      ev.Processed,
			Raw:        ev.Raw,
			Ts:         ev.Ts,
		}); err != nil {
			logging.Error("buffer add failed", "sensor_id", ev.SensorID, "error", err)
		}
	})
	b.SubscribeStatus(func(ev bus.StatusChange) {
		logging.Info("sensor status changed", "sensor_id", ev.SensorID, "state", ev.State)
	})
	b.SubscribeError(func(ev bus.ErrorEvent) {
		logging.Warn("sensor error", "sensor_id", ev.SensorID, "error", ev.Err)
	})
	buf.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	logging.Info("shutting down", "signal", s)

	cancel()
	auto.Stop()
	orch.Stop()
	buf.Stop(context.Background())
	time.Sleep(200 * time.Millisecond)
	logging.Info("bye")
}

func needsBroker(cfg *config.EdgeConfig) bool {
	for _, s := range cfg.Sensors {
		if s.Protocol == config.ProtocolMQTT {
			return true
		}
	}
	return false
}
