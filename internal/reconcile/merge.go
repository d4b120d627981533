// Package reconcile merges campaign records reported by different sources
// into one canonical view.
package reconcile

import "surfscale-engine/internal/campaign"

// MatchKind tells how a primary record found its secondary counterpart.
type MatchKind string

const (
	MatchID   MatchKind = "id"
	MatchName MatchKind = "name"
)

// Stats summarises one Merge call.
type Stats struct {
	ByID          int
	ByName        int
	PrimaryOnly   int
	SecondaryOnly int
}

// Merge reconciles Meta (primary) records with Triple Whale (secondary) records.
//
// Output order: primary-derived records in primary input order, then
// unconsumed secondary records in their input order. Each secondary record
// is consumed by at most one primary record. Inputs are not modified.
func Merge(primary, secondary []campaign.Campaign) []campaign.Campaign {
	out, _ := MergeWithStats(primary, secondary)
	return out
}

// MergeWithStats is Merge plus match counters.
//
// Id matches are bound for every primary record before any name matching,
// so a name match never takes a secondary record that another primary
// record claims by id.
func MergeWithStats(primary, secondary []campaign.Campaign) ([]campaign.Campaign, Stats) {
	var st Stats
	used := make([]bool, len(secondary))
	pairs := make([]int, len(primary))

	for pi, p := range primary {
		pairs[pi] = -1
		if i := matchID(p, secondary, used); i >= 0 {
			pairs[pi] = i
			used[i] = true
			st.ByID++
		}
	}
	for pi, p := range primary {
		if pairs[pi] >= 0 {
			continue
		}
		if i := matchName(p, secondary, used); i >= 0 {
			pairs[pi] = i
			used[i] = true
			st.ByName++
		}
	}

	out := make([]campaign.Campaign, 0, len(primary)+len(secondary))
	for pi, p := range primary {
		if pairs[pi] < 0 {
			st.PrimaryOnly++
			out = append(out, p.TaggedAs(campaign.SourceMeta))
			continue
		}
		out = append(out, combine(p, secondary[pairs[pi]]))
	}
	for i, s := range secondary {
		if used[i] {
			continue
		}
		st.SecondaryOnly++
		out = append(out, s.TaggedAs(campaign.SourceTripleWhale))
	}
	return out, st
}

// matchID returns the unconsumed secondary record that names p by its own id
// or by its Meta cross-reference, or -1. Records without an id never match.
func matchID(p campaign.Campaign, secondary []campaign.Campaign, used []bool) int {
	if p.ID == "" {
		return -1
	}
	for i, s := range secondary {
		if !used[i] && (s.XRef.Meta == p.ID || s.ID == p.ID) {
			return i
		}
	}
	return -1
}

func matchName(p campaign.Campaign, secondary []campaign.Campaign, used []bool) int {
	name := p.NormalizedName()
	for i, s := range secondary {
		if !used[i] && s.NormalizedName() == name {
			return i
		}
	}
	return -1
}

// combine applies the field precedence for a matched pair. Fields not listed
// here come from the primary record.
func combine(p, s campaign.Campaign) campaign.Campaign {
	m := p
	m.Conversions = max(p.Conversions, s.Conversions)
	m.ROAS = max(p.ROAS, s.ROAS)
	m.Spend = max(p.Spend, s.Spend)

	switch {
	case s.Revenue != 0:
		m.Revenue = s.Revenue
	case p.Revenue != 0:
		m.Revenue = p.Revenue
	default:
		m.Revenue = 0
	}
	if s.CPC > 0 {
		m.CPC = s.CPC
	}
	if s.CTR > 0 {
		m.CTR = s.CTR
	}
	m.CPA = campaign.DeriveCPA(s.Spend, s.Conversions, p.CPA)

	m.SourceIDs = p.TaggedAs(campaign.SourceMeta).SourceIDs.Union(s.TaggedAs(campaign.SourceTripleWhale).SourceIDs)
	m.XRef = campaign.SourceIDs{}
	return m
}
