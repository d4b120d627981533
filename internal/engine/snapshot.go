package engine

import (
	"math"
	"math/rand"

	"surfscale-engine/internal/campaign"
)

// Snapshot holds the metric values rules are evaluated against.
type Snapshot struct {
	ROAS  float64 `json:"roas"`
	CPA   float64 `json:"cpa"`
	Spend float64 `json:"spend"`
	CTR   float64 `json:"ctr"`
}

// Value returns the snapshot value for m; unknown metrics read as 0.
func (s Snapshot) Value(m Metric) float64 {
	switch m {
	case MetricROAS:
		return s.ROAS
	case MetricCPA:
		return s.CPA
	case MetricSpend:
		return s.Spend
	case MetricCTR:
		return s.CTR
	}
	return 0
}

// MetricSnapshotProvider supplies the windowed metrics for one campaign.
// Swap the implementation to feed real hourly data into the engine.
type MetricSnapshotProvider interface {
	Snapshot(c campaign.Campaign) Snapshot
}

// SnapshotFunc adapts a function to MetricSnapshotProvider.
type SnapshotFunc func(c campaign.Campaign) Snapshot

func (f SnapshotFunc) Snapshot(c campaign.Campaign) Snapshot { return f(c) }

const (
	DefaultSpread      = 0.2
	fallbackDailySpend = 100.0
)

// VarianceSnapshot simulates hourly metrics from daily aggregates: ROAS and
// CPA move by the same random factor in opposite directions and hourly
// spend is the daily budget spread over 24 hours.
type VarianceSnapshot struct {
	Spread float64
	// Float64 returns values in [0, 1). Defaults to math/rand.
	Float64 func() float64
}

func NewVarianceSnapshot() *VarianceSnapshot {
	return &VarianceSnapshot{Spread: DefaultSpread, Float64: rand.Float64}
}

func (v *VarianceSnapshot) Snapshot(c campaign.Campaign) Snapshot {
	r := rand.Float64
	if v.Float64 != nil {
		r = v.Float64
	}
	variance := r()*2*v.Spread - v.Spread

	daily := c.Budget
	if daily <= 0 {
		daily = fallbackDailySpend
	}
	return Snapshot{
		ROAS:  math.Max(0, c.ROAS*(1+variance)),
		CPA:   math.Max(0, c.CPA*(1-variance)),
		Spend: daily / 24,
		CTR:   c.CTR,
	}
}

// DailySnapshot evaluates rules against the daily aggregates as reported.
type DailySnapshot struct{}

func (DailySnapshot) Snapshot(c campaign.Campaign) Snapshot {
	return Snapshot{ROAS: c.ROAS, CPA: c.CPA, Spend: c.Spend, CTR: c.CTR}
}
