package engine

import (
	"time"

	"github.com/google/uuid"

	"surfscale-engine/internal/campaign"
)

// Engine evaluates surf rules against campaigns. It performs no I/O; the
// only nondeterminism comes from the injected snapshot provider.
type Engine struct {
	snapshots MetricSnapshotProvider
	now       func() time.Time
	newID     func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithIDs(newID func() string) Option    { return func(e *Engine) { e.newID = newID } }

// New returns an engine reading metrics from snapshots, or from the
// simulated VarianceSnapshot when snapshots is nil.
func New(snapshots MetricSnapshotProvider, opts ...Option) *Engine {
	if snapshots == nil {
		snapshots = NewVarianceSnapshot()
	}
	e := &Engine{snapshots: snapshots, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate returns the log of the first enabled rule whose conditions all
// hold, or nil when the campaign is not surf-scaling or nothing matches.
// The campaign itself is not modified.
func (e *Engine) Evaluate(c campaign.Campaign, rules []Rule) *SurfLog {
	if !c.IsSurfScaling {
		return nil
	}

	snap := e.snapshots.Snapshot(c)
	for _, r := range rules {
		if !r.IsEnabled || !matchesAll(r.Conditions, snap) {
			continue
		}
		return &SurfLog{
			ID:           e.newID(),
			CampaignID:   c.ID,
			CampaignName: c.Name,
			RuleID:       r.ID,
			Action:       r.Name,
			ActionType:   r.Action.Type.Normalize(),
			Timestamp:    e.now(),
			OldBudget:    c.Budget,
			NewBudget:    NewBudget(c.Budget, r.Action),
			MetricValue:  triggerValue(snap),
		}
	}
	return nil
}

func matchesAll(conds []Condition, s Snapshot) bool {
	for _, cond := range conds {
		if !compare(s.Value(cond.Metric), cond.Operator, cond.Value) {
			return false
		}
	}
	return true
}

func compare(v float64, op Operator, threshold float64) bool {
	switch op {
	case OpGT:
		return v > threshold
	case OpLT:
		return v < threshold
	case OpGTE:
		return v >= threshold
	case OpLTE:
		return v <= threshold
	}
	return false
}

// NewBudget applies a to old. Decreases are not clamped at zero here.
func NewBudget(old float64, a Action) float64 {
	switch a.Type.Normalize() {
	case ActionIncreaseBudget:
		return old * (1 + a.Value/100)
	case ActionDecreaseBudget:
		return old * (1 - a.Value/100)
	case ActionPause:
		return 0
	}
	return old
}

// triggerValue reports the first non-zero of ROAS, CPA and spend, in that
// order. A genuinely zero ROAS is therefore reported as the CPA.
func triggerValue(s Snapshot) float64 {
	switch {
	case s.ROAS != 0:
		return s.ROAS
	case s.CPA != 0:
		return s.CPA
	}
	return s.Spend
}
