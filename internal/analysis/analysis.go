// Package analysis summarises an account's campaigns into a scaling
// potential with the bottlenecks and recommendations behind it.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"surfscale-engine/internal/campaign"
)

type Potential string

const (
	PotentialHigh   Potential = "HIGH"
	PotentialMedium Potential = "MEDIUM"
	PotentialLow    Potential = "LOW"
)

const (
	highROAS      = 4.0
	mediumROAS    = 2.0
	topROAS       = 3.0
	maxTop        = 5
	minActive     = 5
	lowAvgROAS    = 2.0
	lowCTRPercent = 1.0
)

// AvailableObjectives are the Meta objectives the assistant can create campaigns under.
var AvailableObjectives = []string{"OUTCOME_SALES", "OUTCOME_TRAFFIC", "OUTCOME_ENGAGEMENT", "OUTCOME_LEADS"}

type Performance struct {
	TotalSpend      float64 `json:"totalSpend"`
	AvgROAS         float64 `json:"avgRoas"`
	ActiveCampaigns int     `json:"activeCampaigns"`
	PausedCampaigns int     `json:"pausedCampaigns"`
}

type Opportunities struct {
	ScalingPotential Potential           `json:"scalingPotential"`
	TopCampaigns     []campaign.Campaign `json:"topCampaigns"`
	Bottlenecks      []string            `json:"bottlenecks"`
	Recommendations  []string            `json:"recommendations"`
}

type AccountAnalysis struct {
	AccountID           string        `json:"accountId"`
	AccountName         string        `json:"accountName"`
	AvailableObjectives []string      `json:"availableObjectives"`
	Opportunities       Opportunities `json:"opportunities"`
	Performance         Performance   `json:"performance"`
}

// Analyze grades an account. Average ROAS is spend-weighted.
func Analyze(account campaign.Account, cs []campaign.Campaign) AccountAnalysis {
	var active, paused []campaign.Campaign
	var spend, revenue float64
	for _, c := range cs {
		spend += c.Spend
		revenue += c.Spend * c.ROAS
		if c.Status == campaign.StatusActive {
			active = append(active, c)
		} else {
			paused = append(paused, c)
		}
	}
	avg := 0.0
	if spend > 0 {
		avg = revenue / spend
	}

	top := topCampaigns(active)
	potential := scalingPotential(active)
	bottlenecks := findBottlenecks(active, paused, avg)

	name := account.Name
	if name == "" {
		name = "Unknown Account"
	}
	return AccountAnalysis{
		AccountID:           account.ID,
		AccountName:         name,
		AvailableObjectives: append([]string(nil), AvailableObjectives...),
		Opportunities: Opportunities{
			ScalingPotential: potential,
			TopCampaigns:     top,
			Bottlenecks:      bottlenecks,
			Recommendations:  recommend(top, potential, bottlenecks),
		},
		Performance: Performance{
			TotalSpend:      spend,
			AvgROAS:         avg,
			ActiveCampaigns: len(active),
			PausedCampaigns: len(paused),
		},
	}
}

func topCampaigns(active []campaign.Campaign) []campaign.Campaign {
	top := []campaign.Campaign{}
	for _, c := range active {
		if c.ROAS >= topROAS {
			top = append(top, c)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].ROAS > top[j].ROAS })
	if len(top) > maxTop {
		top = top[:maxTop]
	}
	return top
}

func scalingPotential(active []campaign.Campaign) Potential {
	high, medium := 0, 0
	for _, c := range active {
		switch {
		case c.ROAS >= highROAS:
			high++
		case c.ROAS >= mediumROAS:
			medium++
		}
	}
	switch {
	case high >= 3 || (high >= 1 && medium >= 5):
		return PotentialHigh
	case high >= 1 || medium >= 3:
		return PotentialMedium
	}
	return PotentialLow
}

func findBottlenecks(active, paused []campaign.Campaign, avg float64) []string {
	out := []string{}
	if len(active) < minActive {
		out = append(out, "Few active campaigns: consider more testing")
	}
	if avg < lowAvgROAS {
		out = append(out, "Low average ROAS: optimise targeting and creatives")
	}
	lowCTR := 0
	for _, c := range active {
		if c.CTR < lowCTRPercent {
			lowCTR++
		}
	}
	if float64(lowCTR) > float64(len(active))*0.5 {
		out = append(out, "Many campaigns with low CTR: possible creative fatigue")
	}
	if len(paused) > len(active) {
		out = append(out, "More paused than active campaigns: reassess strategy")
	}
	return out
}

func recommend(top []campaign.Campaign, p Potential, bottlenecks []string) []string {
	out := []string{}
	if len(top) > 0 {
		names := make([]string, len(top))
		for i, c := range top {
			names[i] = c.Name
		}
		out = append(out, fmt.Sprintf("Increase budget for top performers: %s", strings.Join(names, ", ")))
	}
	if p == PotentialHigh {
		out = append(out, "Account has high scaling potential: consider aggressive budget increases")
	}
	if len(bottlenecks) > 0 {
		out = append(out, "Address the bottlenecks for better performance")
	}
	return append(out,
		"Monitor ROAS trends daily for early warning signals",
		"Test new creatives for campaigns with low CTR",
	)
}
