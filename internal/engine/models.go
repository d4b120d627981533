package engine

import "time"

// Metric is the left-hand side of a rule condition.
type Metric string

const (
	MetricROAS  Metric = "ROAS"
	MetricCPA   Metric = "CPA"
	MetricSpend Metric = "SPEND"
	MetricCTR   Metric = "CTR"
)

// Operator compares a metric against a threshold, strictly (no epsilon).
type Operator string

const (
	OpGT  Operator = ">"
	OpLT  Operator = "<"
	OpGTE Operator = ">="
	OpLTE Operator = "<="
)

// Window is advisory: the simulated snapshot does not honour it.
type Window string

const (
	Window1H  Window = "1H"
	Window3H  Window = "3H"
	Window12H Window = "12H"
	Window24H Window = "24H"
)

type ActionType string

const (
	ActionIncreaseBudget ActionType = "INCREASE_BUDGET"
	ActionDecreaseBudget ActionType = "DECREASE_BUDGET"
	ActionPause          ActionType = "PAUSE"

	// older rule payloads spell pause this way
	actionPauseCampaign ActionType = "PAUSE_CAMPAIGN"
)

// Normalize folds aliases onto the canonical action names.
func (a ActionType) Normalize() ActionType {
	if a == actionPauseCampaign {
		return ActionPause
	}
	return a
}

type Condition struct {
	Metric   Metric   `json:"metric" yaml:"metric"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    float64  `json:"value" yaml:"value"`
	Window   Window   `json:"window,omitempty" yaml:"window,omitempty"`
}

// Action value is a percentage for budget changes and ignored for PAUSE.
type Action struct {
	Type  ActionType `json:"type" yaml:"type"`
	Value float64    `json:"value" yaml:"value"`
}

// Rule fires when every condition holds. Rules are evaluated in list order.
type Rule struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Action     Action      `json:"action" yaml:"action"`
	IsEnabled  bool        `json:"isEnabled" yaml:"enabled"`
}

// SurfLog is the immutable audit record of one budget change.
type SurfLog struct {
	ID           string     `json:"id"`
	CampaignID   string     `json:"campaignId"`
	CampaignName string     `json:"campaignName"`
	RuleID       string     `json:"ruleId"`
	Action       string     `json:"action"` // rule name
	ActionType   ActionType `json:"actionType"`
	Timestamp    time.Time  `json:"timestamp"`
	OldBudget    float64    `json:"oldBudget"`
	NewBudget    float64    `json:"newBudget"`
	MetricValue  float64    `json:"metricValue"`
}
