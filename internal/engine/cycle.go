package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/campaign"
)

// Summary counts what one cycle looked at and changed.
type Summary struct {
	Monitored   int       `json:"monitored"`
	ActiveRules int       `json:"activeRules"`
	Adjustments int       `json:"adjustments"`
	At          time.Time `json:"at"`
	Text        string    `json:"text"`
}

// CycleResult carries the campaigns after budget changes plus the logs that caused them.
type CycleResult struct {
	Campaigns []campaign.Campaign `json:"campaigns"`
	Logs      []SurfLog           `json:"logs"`
	Summary   Summary             `json:"summary"`
}

// RunCycle evaluates every campaign once and applies the resulting budgets to
// copies of the input. Negative budgets from large decreases are clamped to
// zero here, and PAUSE actions also set the campaign status.
func (e *Engine) RunCycle(cs []campaign.Campaign, rules []Rule) CycleResult {
	out := make([]campaign.Campaign, len(cs))
	copy(out, cs)
	logs := []SurfLog{}

	monitored := 0
	for i := range out {
		c := &out[i]
		if c.IsSurfScaling {
			monitored++
		}
		l := e.Evaluate(*c, rules)
		if l == nil {
			continue
		}
		budget := l.NewBudget
		if budget < 0 {
			log.Warn().Str("campaign", c.ID).Str("rule", l.RuleID).Float64("budget", budget).Msg("negative budget clamped to zero")
			budget = 0
		}
		c.Budget = budget
		if l.ActionType == ActionPause {
			c.Status = campaign.StatusPaused
		}
		logs = append(logs, *l)
	}

	active := 0
	for _, r := range rules {
		if r.IsEnabled {
			active++
		}
	}

	s := Summary{Monitored: monitored, ActiveRules: active, Adjustments: len(logs), At: e.now()}
	s.Text = summaryText(s, logs)
	return CycleResult{Campaigns: out, Logs: logs, Summary: s}
}

func summaryText(s Summary, logs []SurfLog) string {
	at := s.At.Format("15:04")
	if len(logs) == 0 {
		return fmt.Sprintf("Surf report (%s): all calm. %d campaigns checked against %d rules, nothing needed action.",
			at, s.Monitored, s.ActiveRules)
	}
	first := logs[0]
	dir := "decrease"
	if first.NewBudget > first.OldBudget {
		dir = "increase"
	}
	return fmt.Sprintf("Surf report (%s): monitoring %d campaigns, %d adjustments from %d active rules. Rule %q triggered a budget %s on %q.",
		at, s.Monitored, len(logs), s.ActiveRules, first.Action, dir, first.CampaignName)
}
