package config

import (
	"fmt"

	"github.com/google/uuid"
)

// AutomationRule is the definition form of §3's automation rule; the
// automation engine stores it as given and tracks each rule's last
// trigger time in its own map keyed by rule_id.
type AutomationRule struct {
	RuleID         string  `json:"rule_id" yaml:"rule_id"`
	Name           string  `json:"name" yaml:"name"`
	Condition      string  `json:"condition" yaml:"condition"`
	TargetSensorID int64   `json:"target_sensor_id" yaml:"target_sensor_id"`
	TargetValue    float64 `json:"target_value" yaml:"target_value"`
	TargetFormula  string  `json:"target_formula,omitempty" yaml:"target_formula,omitempty"`
	CooldownS      int     `json:"cooldown_s" yaml:"cooldown_s"`
}

// Normalize mints a rule_id (google/uuid) when the caller left it blank,
// so a hand-authored rule file doesn't have to invent identifiers, then
// validates the rest.
func (r *AutomationRule) Normalize() error {
	if r.RuleID == "" {
		r.RuleID = uuid.NewString()
	}
	if r.Condition == "" {
		return fmt.Errorf("config: rule %q: condition is required", r.RuleID)
	}
	if r.CooldownS < 0 {
		return fmt.Errorf("config: rule %q: cooldown_s cannot be negative", r.RuleID)
	}
	return nil
}
