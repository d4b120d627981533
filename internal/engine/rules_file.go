package engine

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesConfig is the on-disk rules document.
type RulesConfig struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesFile reads and validates a YAML rules file.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}
	for i := range cfg.Rules {
		cfg.Rules[i].Action.Type = cfg.Rules[i].Action.Type.Normalize()
		if err := cfg.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	return cfg.Rules, nil
}

// Validate rejects rules that could never be evaluated as written.
func (r Rule) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	for j, c := range r.Conditions {
		switch c.Metric {
		case MetricROAS, MetricCPA, MetricSpend, MetricCTR:
		default:
			errs = append(errs, fmt.Errorf("conditions[%d]: unknown metric %q", j, c.Metric))
		}
		switch c.Operator {
		case OpGT, OpLT, OpGTE, OpLTE:
		default:
			errs = append(errs, fmt.Errorf("conditions[%d]: unknown operator %q", j, c.Operator))
		}
	}
	switch r.Action.Type.Normalize() {
	case ActionIncreaseBudget, ActionDecreaseBudget, ActionPause:
	default:
		errs = append(errs, fmt.Errorf("unknown action %q", r.Action.Type))
	}
	if r.Action.Value < 0 {
		errs = append(errs, errors.New("action value must be >= 0"))
	}
	return errors.Join(errs...)
}

// DefaultRules is the starter rule set for a fresh install.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "1",
			Name:       "High ROAS Scaler",
			Conditions: []Condition{{Metric: MetricROAS, Operator: OpGT, Value: 4.0, Window: Window1H}},
			Action:     Action{Type: ActionIncreaseBudget, Value: 20},
			IsEnabled:  true,
		},
		{
			ID:         "2",
			Name:       "Cost Saver",
			Conditions: []Condition{{Metric: MetricCPA, Operator: OpGT, Value: 50, Window: Window1H}},
			Action:     Action{Type: ActionDecreaseBudget, Value: 10},
			IsEnabled:  true,
		},
	}
}
