package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/cache"
)

// RuleSource loads the persisted, ordered rule list.
type RuleSource interface {
	LoadRules(ctx context.Context) ([]Rule, error)
}

// RuleSet exposes the live rules with lock-free reads.
type RuleSet struct{ snap cache.Snapshot[[]Rule] }

func NewRuleSet(initial []Rule) *RuleSet {
	s := &RuleSet{}
	s.Store(initial)
	return s
}

// Rules returns a copy of the current list, in evaluation order.
func (s *RuleSet) Rules() []Rule {
	rules, _ := s.snap.Load()
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Store swaps in rules, normalizing action aliases.
func (s *RuleSet) Store(rules []Rule) {
	cp := make([]Rule, len(rules))
	for i, r := range rules {
		r.Action.Type = r.Action.Type.Normalize()
		r.Conditions = append([]Condition(nil), r.Conditions...)
		cp[i] = r
	}
	s.snap.Store(cp)
}

// Reload replaces the rules from src; the previous set stays live on error.
func (s *RuleSet) Reload(ctx context.Context, src RuleSource) error {
	rules, err := src.LoadRules(ctx)
	if err != nil {
		return err
	}
	s.Store(rules)
	log.Info().Int("rules", len(rules)).Msg("rule set reloaded")
	return nil
}
