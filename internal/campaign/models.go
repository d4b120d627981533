package campaign

import "strings"

// Status of a campaign as reported by the ad platform.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
)

// ParseStatus maps any platform status onto ACTIVE | PAUSED.
func ParseStatus(s string) Status {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusActive)) {
		return StatusActive
	}
	return StatusPaused
}

// DefaultMinROAS is the threshold annotation adapters stamp on fresh records.
const DefaultMinROAS = 2.5

// DefaultObjective is used when the source does not report one.
const DefaultObjective = "OUTCOME_SALES"

// Campaign is the canonical, source-agnostic campaign record.
type Campaign struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Objective string `json:"objective"`

	Budget      float64 `json:"budget"` // daily, currency units
	Spend       float64 `json:"spend"`
	ROAS        float64 `json:"roas"`
	Revenue     float64 `json:"revenue,omitempty"` // 0 means not reported
	Conversions float64 `json:"conversions"`
	CPC         float64 `json:"cpc"`
	CTR         float64 `json:"ctr"`
	CPA         float64 `json:"cpa"`

	Status        Status  `json:"status"`
	IsSurfScaling bool    `json:"isSurfScaling"`
	MinROAS       float64 `json:"minRoas"`

	SourceIDs SourceIDs `json:"sourceIds"`
	// XRef holds ids of the same campaign on other platforms, as reported by
	// the source itself (Triple Whale knows the Meta id of ad-platform campaigns).
	XRef SourceIDs `json:"xref,omitempty"`
}

// DeriveCPA returns spend/conversions, or fallback when there are no conversions.
func DeriveCPA(spend, conversions, fallback float64) float64 {
	if conversions > 0 {
		return spend / conversions
	}
	return fallback
}

// NormalizedName is the form used for cross-source name matching.
func (c Campaign) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}

// Ref returns the typed provenance of the record.
func (c Campaign) Ref() Ref {
	return Ref{Source: c.SourceIDs.Kind(), IDs: c.SourceIDs}
}

// Flags are the user-controlled annotations persisted outside the poll cycle.
type Flags struct {
	IsSurfScaling bool    `json:"isSurfScaling"`
	MinROAS       float64 `json:"minRoas,omitempty"`
}

// ApplyFlags overlays persisted flags onto freshly polled campaigns, matched by Ref key.
func ApplyFlags(cs []Campaign, flags map[string]Flags) []Campaign {
	out := make([]Campaign, len(cs))
	for i, c := range cs {
		if f, ok := flags[c.Ref().Key()]; ok {
			c.IsSurfScaling = f.IsSurfScaling
			if f.MinROAS > 0 {
				c.MinROAS = f.MinROAS
			}
		}
		out[i] = c
	}
	return out
}
