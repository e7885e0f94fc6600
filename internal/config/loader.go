// Package config carries the strict-JSON loading idiom the edge gateway
// uses for its standalone binaries: comments stripped before decode,
// unknown fields rejected, every definition individually validated and
// errors aggregated rather than failing on the first one.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// EdgeConfig is what a standalone gateway process loads at startup: the
// sensor registry snapshot and the automation rule set. The HTTP façade
// that owns the real metadata store is out of scope (§1); this loader
// exists so cmd/server/edge and the test fixtures have a concrete,
// reproducible way to populate the orchestrator and automation engine.
type EdgeConfig struct {
	Sensors []SensorDefinition `json:"sensors"`
	Rules   []AutomationRule   `json:"rules"`
}

func (c *EdgeConfig) Validate() error {
	var errs multiErr

	seenIDs := map[int64]int{}
	seenNames := map[string]int{}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if err := s.Normalize(); err != nil {
			errs.add(err.Error())
			continue
		}
		if j, ok := seenIDs[s.SensorID]; ok {
			errs.addf("sensors[%d]: duplicate sensor_id %d (also at sensors[%d])", i, s.SensorID, j)
		} else {
			seenIDs[s.SensorID] = i
		}
		if j, ok := seenNames[s.SensorName]; ok {
			errs.addf("sensors[%d]: duplicate sensor_name %q (also at sensors[%d])", i, s.SensorName, j)
		} else {
			seenNames[s.SensorName] = i
		}
	}

	seenRules := map[string]int{}
	for i := range c.Rules {
		r := &c.Rules[i]
		if err := r.Normalize(); err != nil {
			errs.add(err.Error())
			continue
		}
		if j, ok := seenRules[r.RuleID]; ok {
			errs.addf("rules[%d]: duplicate rule_id %q (also at rules[%d])", i, r.RuleID, j)
		} else {
			seenRules[r.RuleID] = i
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func LoadEdgeConfig(path string) (*EdgeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decodeEdgeConfig(raw)
}

func LoadEdgeConfigFromReader(r io.Reader) (*EdgeConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeEdgeConfig(raw)
}

func decodeEdgeConfig(raw []byte) (*EdgeConfig, error) {
	clean := stripJSONComments(raw)

	dec := json.NewDecoder(strings.NewReader(string(clean)))
	dec.DisallowUnknownFields()

	var cfg EdgeConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadAutomationRulesYAML reads a standalone automation-rule seed/export
// file in YAML, parallel to the JSON sensors/rules format EdgeConfig
// decodes. It is meant for hand-maintained rule sets an operator edits
// directly, separate from the orchestrator's JSON-sourced sensor
// registry; each rule is still run through Normalize and duplicate
// rule_ids are rejected the same way decodeEdgeConfig rejects them.
func LoadAutomationRulesYAML(path string) ([]AutomationRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var doc struct {
		Rules []AutomationRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	var errs multiErr
	seen := map[string]int{}
	for i := range doc.Rules {
		r := &doc.Rules[i]
		if err := r.Normalize(); err != nil {
			errs.add(err.Error())
			continue
		}
		if j, ok := seen[r.RuleID]; ok {
			errs.addf("rules[%d]: duplicate rule_id %q (also at rules[%d])", i, r.RuleID, j)
		} else {
			seen[r.RuleID] = i
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return doc.Rules, nil
}

var (
	lineComments  = regexp.MustCompile(`(?m)//[^\n\r]*`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripJSONComments(in []byte) []byte {
	text := string(in)
	text = blockComments.ReplaceAllString(text, "")
	text = lineComments.ReplaceAllString(text, "")
	return []byte(text)
}

type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
