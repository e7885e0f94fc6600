// Package automation implements §4.6: a rule engine that is itself a
// value-subscriber of the orchestrator's fan-out bus, keeping a
// sensor-name value cache and a periodically refreshed stats cache, and
// invoking orchestrator.write_sensor when a rule's condition holds and
// its cooldown has elapsed. Grounded on the teacher's MsgBroker
// background refresh pattern (a goroutine + ticker driving a cache,
// internal/messaging/broker.go's onConnectPublisher bookkeeping) and on
// the Supervisor's callback-isolation discipline for rule firing.
package automation

import (
	"context"
	"sync"
	"time"

	"github.com/edgehub/core/internal/bus"
	"github.com/edgehub/core/internal/config"
	"github.com/edgehub/core/internal/formula"
	"github.com/edgehub/core/internal/logging"
	"github.com/edgehub/core/internal/sink"
)

// SensorWriter is the orchestrator method the engine calls to carry out
// a rule's action; structurally satisfied by *orchestrator.Orchestrator.
type SensorWriter interface {
	WriteSensor(ctx context.Context, sensorID int64, value float64) error
}

const defaultStatsRefreshInterval = 30 * time.Second

// Engine is safe for concurrent CRUD and value-event delivery; it is
// itself a value-subscriber, so Subscribe the returned OnValue callback
// to the orchestrator's bus at wiring time.
type Engine struct {
	formulaEngine *formula.Engine
	writer        SensorWriter
	statsSource   sink.TimeSeriesSink
	refreshEvery  time.Duration

	mu            sync.RWMutex
	rules         map[string]config.AutomationRule
	valueCache    map[string]float64
	statsCache    map[string]float64
	lastTriggered map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(formulaEngine *formula.Engine, writer SensorWriter, statsSource sink.TimeSeriesSink) *Engine {
	return &Engine{
		formulaEngine: formulaEngine,
		writer:        writer,
		statsSource:   statsSource,
		refreshEvery:  defaultStatsRefreshInterval,
		rules:         make(map[string]config.AutomationRule),
		valueCache:    make(map[string]float64),
		statsCache:    make(map[string]float64),
		lastTriggered: make(map[string]time.Time),
	}
}

// Start launches the periodic stats-cache refresh task (default 30s).
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.refreshLoop(runCtx)
}

// Stop cancels the stats task and returns (§5).
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *Engine) AddRule(rule config.AutomationRule) error {
	if err := rule.Normalize(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[rule.RuleID] = rule
	return nil
}

func (e *Engine) RemoveRule(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[ruleID]; !ok {
		return false
	}
	delete(e.rules, ruleID)
	delete(e.lastTriggered, ruleID)
	return true
}

func (e *Engine) GetRule(ruleID string) (config.AutomationRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[ruleID]
	return r, ok
}

func (e *Engine) ListRules() []config.AutomationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]config.AutomationRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	return out
}

// OnValue is the orchestrator value-subscriber callback (§4.6): it
// updates the value cache, then evaluates every rule against the
// combined environment.
func (e *Engine) OnValue(ev bus.ProcessedValue) {
	e.mu.Lock()
	e.valueCache[ev.SensorName] = ev.Processed
	e.mu.Unlock()

	e.evaluateRules(context.Background())
}

func (e *Engine) evaluateRules(ctx context.Context) {
	e.mu.RLock()
	rules := make([]config.AutomationRule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	now := time.Now()
	for _, rule := range rules {
		e.evaluateRule(ctx, rule, now)
	}
}

func (e *Engine) evaluateRule(ctx context.Context, rule config.AutomationRule, now time.Time) {
	e.mu.RLock()
	last, hasTriggered := e.lastTriggered[rule.RuleID]
	e.mu.RUnlock()
	if hasTriggered && now.Sub(last) < time.Duration(rule.CooldownS)*time.Second {
		return
	}

	env := e.buildEnv()

	ok, err := e.formulaEngine.EvaluateBool(rule.Condition, env)
	if err != nil {
		logging.Warn("automation: condition evaluation failed", "rule_id", rule.RuleID, "error", err)
		return
	}
	if !ok {
		return
	}

	action := rule.TargetValue
	if rule.TargetFormula != "" {
		v, err := e.formulaEngine.EvaluateWithEnv(rule.TargetFormula, env)
		if err != nil {
			logging.Warn("automation: target_formula failed, action aborted", "rule_id", rule.RuleID, "error", err)
			return
		}
		action = v
	}

	if err := e.writer.WriteSensor(ctx, rule.TargetSensorID, action); err != nil {
		logging.Warn("automation: write_sensor failed", "rule_id", rule.RuleID, "target_sensor_id", rule.TargetSensorID, "error", err)
		return
	}

	e.mu.Lock()
	e.lastTriggered[rule.RuleID] = now
	e.mu.Unlock()
}

func (e *Engine) buildEnv() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	env := make(map[string]float64, len(e.valueCache)+len(e.statsCache))
	for k, v := range e.valueCache {
		env[k] = v
	}
	for k, v := range e.statsCache {
		env[k] = v
	}
	return env
}

func (e *Engine) refreshLoop(ctx context.Context) {
	defer close(e.done)
	e.refreshStats(ctx)
	ticker := time.NewTicker(e.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.refreshStats(ctx)
		}
	}
}

// refreshStats scans every rule for stat_<sensor>_<fn>_<window>
// identifiers, queries the sink once per distinct (sensor, window), and
// updates the cache with all functions the query returns. Unresolvable
// identifiers are left unset, so rules referencing them evaluate false
// for that tick (§4.6).
func (e *Engine) refreshStats(ctx context.Context) {
	if e.statsSource == nil {
		return
	}
	type key struct {
		sensor string
		window time.Duration
	}
	needed := make(map[key][]statIdent)

	e.mu.RLock()
	rules := make([]config.AutomationRule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	for _, rule := range rules {
		for _, expr := range []string{rule.Condition, rule.TargetFormula} {
			if expr == "" {
				continue
			}
			idents, err := e.formulaEngine.Identifiers(expr)
			if err != nil {
				continue
			}
			for name := range idents {
				si, ok := parseStatIdent(name)
				if !ok {
					continue
				}
				k := key{sensor: si.sensor, window: si.window}
				needed[k] = append(needed[k], si)
			}
		}
	}

	updates := make(map[string]float64)
	now := time.Now()
	for k := range needed {
		stats, err := e.statsSource.QueryStatistics(ctx, k.sensor, now.Add(-k.window).Unix(), now.Unix())
		if err != nil {
			logging.Warn("automation: stats query failed", "sensor", k.sensor, "window", k.window, "error", err)
			continue
		}
		for _, si := range needed[k] {
			switch si.fn {
			case "mean":
				updates[si.key()] = stats.Mean
			case "min":
				updates[si.key()] = stats.Min
			case "max":
				updates[si.key()] = stats.Max
			case "stddev":
				updates[si.key()] = stats.StdDev
			case "count":
				updates[si.key()] = float64(stats.Count)
			}
		}
	}

	e.mu.Lock()
	for k, v := range updates {
		e.statsCache[k] = v
	}
	e.mu.Unlock()
}
