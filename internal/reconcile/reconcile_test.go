package reconcile

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/providers"
)

func metaC(id, name string) campaign.Campaign {
	return campaign.Campaign{ID: id, Name: name, Budget: 100, Status: campaign.StatusActive, SourceIDs: campaign.SourceIDs{Meta: id}}
}

func twC(id, name string) campaign.Campaign {
	return campaign.Campaign{ID: id, Name: name, Status: campaign.StatusActive, SourceIDs: campaign.SourceIDs{TripleWhale: id}}
}

func TestMerge_EmptySecondaryOnlyTags(t *testing.T) {
	a := []campaign.Campaign{
		{ID: "1", Name: "A", Spend: 10, ROAS: 2, Budget: 50},
		{ID: "2", Name: "B", Spend: 20, CPA: 4},
	}
	got := Merge(a, nil)

	require.Len(t, got, 2)
	for i := range a {
		want := a[i]
		want.SourceIDs = campaign.SourceIDs{Meta: a[i].ID}
		assert.Equal(t, want, got[i])
	}
	assert.Empty(t, a[0].SourceIDs.Meta, "input untouched")
}

func TestMerge_NameFallback(t *testing.T) {
	got := Merge(
		[]campaign.Campaign{metaC("111", "Winter Sale")},
		[]campaign.Campaign{twC("tw9", " winter sale ")},
	)
	require.Len(t, got, 1)
	assert.Equal(t, "111", got[0].ID)
	assert.Equal(t, "Winter Sale", got[0].Name)
	assert.Equal(t, campaign.SourceIDs{Meta: "111", TripleWhale: "tw9"}, got[0].SourceIDs)
}

func TestMerge_IDBeatsName(t *testing.T) {
	byName := twC("tw1", "Alpha")
	byXRef := twC("tw2", "Something else")
	byXRef.XRef.Meta = "1"

	got, st := MergeWithStats([]campaign.Campaign{metaC("1", "Alpha")}, []campaign.Campaign{byName, byXRef})
	require.Len(t, got, 2)
	assert.Equal(t, "tw2", got[0].SourceIDs.TripleWhale)
	assert.Equal(t, "tw1", got[1].ID, "unmatched secondary appended")
	assert.Equal(t, campaign.SourceIDs{TripleWhale: "tw1"}, got[1].SourceIDs)
	assert.Equal(t, Stats{ByID: 1, SecondaryOnly: 1}, st)
}

func TestMerge_OwnIDMatch(t *testing.T) {
	got := Merge([]campaign.Campaign{metaC("555", "X")}, []campaign.Campaign{twC("555", "Y")})
	require.Len(t, got, 1)
	assert.Equal(t, campaign.SourceMerged, got[0].Ref().Source)
}

func TestMerge_MetricPrecedenceIsPerField(t *testing.T) {
	p := metaC("1", "Camp")
	p.Spend, p.ROAS = 100, 3
	s := twC("t", "camp")
	s.Spend, s.ROAS = 150, 2

	got := Merge([]campaign.Campaign{p}, []campaign.Campaign{s})
	require.Len(t, got, 1)
	assert.Equal(t, 150.0, got[0].Spend)
	assert.Equal(t, 3.0, got[0].ROAS)
}

func TestMerge_PrecedenceTable(t *testing.T) {
	p := campaign.Campaign{
		ID: "1", Name: "C", Objective: "OUTCOME_SALES", Budget: 500, Status: campaign.StatusPaused,
		IsSurfScaling: true, MinROAS: 4, Spend: 80, ROAS: 2, Conversions: 10,
		Revenue: 160, CPC: 0.4, CTR: 1.1, CPA: 8, SourceIDs: campaign.SourceIDs{Meta: "1"},
	}

	tests := []struct {
		name  string
		s     campaign.Campaign
		check func(t *testing.T, m campaign.Campaign)
	}{
		{
			name: "secondary richer",
			s:    campaign.Campaign{ID: "t", Name: "c", Spend: 90, ROAS: 3, Conversions: 6, Revenue: 270, CPC: 0.5, CTR: 2, Budget: 0, Status: campaign.StatusActive},
			check: func(t *testing.T, m campaign.Campaign) {
				assert.Equal(t, 10.0, m.Conversions)
				assert.Equal(t, 3.0, m.ROAS)
				assert.Equal(t, 90.0, m.Spend)
				assert.Equal(t, 270.0, m.Revenue)
				assert.Equal(t, 0.5, m.CPC)
				assert.Equal(t, 2.0, m.CTR)
				assert.Equal(t, 15.0, m.CPA, "secondary spend / secondary conversions")
			},
		},
		{
			name: "secondary sparse",
			s:    campaign.Campaign{ID: "t", Name: "C"},
			check: func(t *testing.T, m campaign.Campaign) {
				assert.Equal(t, 160.0, m.Revenue)
				assert.Equal(t, 0.4, m.CPC)
				assert.Equal(t, 1.1, m.CTR)
				assert.Equal(t, 8.0, m.CPA)
				assert.Equal(t, 80.0, m.Spend)
			},
		},
		{
			name: "no revenue anywhere",
			s:    campaign.Campaign{ID: "t", Name: "C"},
			check: func(t *testing.T, m campaign.Campaign) {
				assert.Zero(t, m.Revenue)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prim := p
			if tt.name == "no revenue anywhere" {
				prim.Revenue = 0
			}
			got := Merge([]campaign.Campaign{prim}, []campaign.Campaign{tt.s})
			require.Len(t, got, 1)
			m := got[0]
			tt.check(t, m)

			// primary-owned fields
			assert.Equal(t, "1", m.ID)
			assert.Equal(t, "C", m.Name)
			assert.Equal(t, 500.0, m.Budget)
			assert.Equal(t, campaign.StatusPaused, m.Status)
			assert.True(t, m.IsSurfScaling)
			assert.Equal(t, 4.0, m.MinROAS)
			assert.Equal(t, campaign.SourceIDs{Meta: "1", TripleWhale: "t"}, m.SourceIDs)
		})
	}
}

func TestMerge_OrderAndSingleConsumption(t *testing.T) {
	primary := []campaign.Campaign{metaC("1", "Dup"), metaC("2", "Dup"), metaC("3", "Solo")}
	secondary := []campaign.Campaign{twC("a", "Other"), twC("b", "dup"), twC("c", "Last")}

	got := Merge(primary, secondary)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.Ref().Key()
		assert.GreaterOrEqual(t, c.SourceIDs.Count(), 1)
	}
	assert.Equal(t, []string{"meta:1", "meta:2", "meta:3", "tripleWhale:a", "tripleWhale:c"}, ids)
	assert.Equal(t, "b", got[0].SourceIDs.TripleWhale)
	assert.Empty(t, got[1].SourceIDs.TripleWhale, "b already consumed")
	assert.Equal(t, 1, got[4].SourceIDs.Count())
}

func TestMerge_CrossReferenceWinsOverEarlierNameMatch(t *testing.T) {
	xref := twC("t", "sale")
	xref.XRef.Meta = "2"

	got, st := MergeWithStats(
		[]campaign.Campaign{metaC("1", "Sale"), metaC("2", "Brand")},
		[]campaign.Campaign{xref},
	)
	require.Len(t, got, 2)
	assert.Equal(t, campaign.SourceIDs{Meta: "1"}, got[0].SourceIDs)
	assert.Equal(t, campaign.SourceIDs{Meta: "2", TripleWhale: "t"}, got[1].SourceIDs)
	assert.Equal(t, Stats{ByID: 1, PrimaryOnly: 1}, st)
}

func TestMerge_EmptyIDsNeverMatchByID(t *testing.T) {
	got, st := MergeWithStats(
		[]campaign.Campaign{{Name: "A"}},
		[]campaign.Campaign{{Name: "B"}},
	)
	assert.Len(t, got, 2)
	assert.Zero(t, st.ByID)
}

type fakeFetcher struct {
	src   campaign.Source
	res   providers.Result
	delay time.Duration
	calls int32
}

func (f *fakeFetcher) Source() campaign.Source { return f.src }

func (f *fakeFetcher) Fetch(ctx context.Context, _ campaign.Account, _ campaign.Period) providers.Result {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.res
}

func accountWith(meta, tw bool) campaign.Account {
	return campaign.Account{ID: "acc", DataSources: &campaign.DataSources{
		Meta:        &campaign.MetaSource{Enabled: meta, AdAccountID: "act_1", AccessToken: "t"},
		TripleWhale: &campaign.TripleWhaleSource{Enabled: tw, APIKey: "k"},
	}}
}

func TestAggregator_Fetch(t *testing.T) {
	metaOK := providers.OK([]campaign.Campaign{metaC("1", "Winter Sale"), metaC("2", "Other")})
	twOK := providers.OK([]campaign.Campaign{twC("t1", "winter sale"), twC("t2", "TW only")})

	tests := []struct {
		name      string
		account   campaign.Account
		meta, tw  providers.Result
		wantLen   int
		wantError string
	}{
		{"no sources", accountWith(false, false), metaOK, twOK, 0, ErrNoSources},
		{"no data sources at all", campaign.Account{ID: "x"}, metaOK, twOK, 0, ErrNoSources},
		{"meta only", accountWith(true, false), metaOK, twOK, 2, ""},
		{"tw only", accountWith(false, true), metaOK, twOK, 2, ""},
		{"both merge", accountWith(true, true), metaOK, twOK, 3, ""},
		{"partial failure", accountWith(true, true), metaOK, providers.Failf("invalid api key"), 2, "Triple Whale: invalid api key"},
		{"total failure", accountWith(true, true), providers.Failf("token expired"), providers.Failf("HTTP 500"), 0, "Meta: token expired; Triple Whale: HTTP 500"},
		{"empty success", accountWith(true, true), providers.OK(nil), providers.OK(nil), 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeFetcher{src: campaign.SourceMeta, res: tt.meta}
			w := &fakeFetcher{src: campaign.SourceTripleWhale, res: tt.tw}
			res := NewAggregator(m, w).Fetch(context.Background(), tt.account, campaign.PeriodToday)

			assert.Equal(t, tt.wantError, res.Error)
			assert.Len(t, res.Data, tt.wantLen)
			assert.NotNil(t, res.Data)
			if tt.wantError == ErrNoSources {
				assert.Zero(t, atomic.LoadInt32(&m.calls)+atomic.LoadInt32(&w.calls), "config error short-circuits")
			}
			for _, c := range res.Data {
				assert.GreaterOrEqual(t, c.SourceIDs.Count(), 1)
			}
		})
	}
}

func TestAggregator_SingleSourceTagging(t *testing.T) {
	w := &fakeFetcher{src: campaign.SourceTripleWhale, res: providers.OK([]campaign.Campaign{{ID: "t1", Name: "A"}})}
	res := NewAggregator(nil, w).Fetch(context.Background(), accountWith(false, true), campaign.PeriodToday)
	require.Len(t, res.Data, 1)
	assert.Equal(t, campaign.SourceIDs{TripleWhale: "t1"}, res.Data[0].SourceIDs)
}

func TestAggregator_FetchesConcurrently(t *testing.T) {
	m := &fakeFetcher{src: campaign.SourceMeta, res: providers.OK([]campaign.Campaign{metaC("1", "A")}), delay: 80 * time.Millisecond}
	w := &fakeFetcher{src: campaign.SourceTripleWhale, res: providers.OK([]campaign.Campaign{twC("t", "a")}), delay: 80 * time.Millisecond}

	start := time.Now()
	res := NewAggregator(m, w).Fetch(context.Background(), accountWith(true, true), campaign.PeriodToday)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	require.Len(t, res.Data, 1, "joined before merge")
	assert.Equal(t, campaign.SourceMerged, res.Data[0].Ref().Source)
}

func TestAggregator_MissingAdapter(t *testing.T) {
	m := &fakeFetcher{src: campaign.SourceMeta, res: providers.OK([]campaign.Campaign{metaC("1", "A")})}
	res := NewAggregator(m, nil).Fetch(context.Background(), accountWith(true, true), campaign.PeriodToday)
	assert.Len(t, res.Data, 1)
	assert.Equal(t, "Triple Whale: source not configured", res.Error)
}
