package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
	}{
		{"today", PeriodToday},
		{"yesterday", PeriodYesterday},
		{" LAST_7D ", PeriodLast7d},
		{"", PeriodToday},
		{"last_30d", PeriodToday},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePeriod(tt.in))
		})
	}
}

func TestPeriod_DateRange(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	s, e := PeriodToday.DateRange(now)
	assert.Equal(t, "2024-03-10", s)
	assert.Equal(t, "2024-03-10", e)

	s, e = PeriodYesterday.DateRange(now)
	assert.Equal(t, "2024-03-09", s)
	assert.Equal(t, "2024-03-09", e)

	s, e = PeriodLast7d.DateRange(now)
	assert.Equal(t, "2024-03-03", s)
	assert.Equal(t, "2024-03-10", e)

	s, _ = Period("bogus").DateRange(now)
	assert.Equal(t, "2024-03-10", s)
}

func TestRef_Key(t *testing.T) {
	merged := Campaign{ID: "1", SourceIDs: SourceIDs{Meta: "1", TripleWhale: "tw9"}}
	metaOnly := Campaign{ID: "1", SourceIDs: SourceIDs{Meta: "1"}}
	twOnly := Campaign{ID: "tw9", SourceIDs: SourceIDs{TripleWhale: "tw9"}}

	assert.Equal(t, SourceMerged, merged.Ref().Source)
	assert.Equal(t, merged.Ref().Key(), metaOnly.Ref().Key())
	assert.Equal(t, "tripleWhale:tw9", twOnly.Ref().Key())

	ref, ok := ParseRefKey("tripleWhale:tw9")
	assert.True(t, ok)
	assert.Equal(t, twOnly.Ref(), ref)

	_, ok = ParseRefKey("google:1")
	assert.False(t, ok)
}

func TestTaggedAs_KeepsExactlyOneID(t *testing.T) {
	c := Campaign{ID: "42", SourceIDs: SourceIDs{Meta: "42", TripleWhale: "x"}}

	m := c.TaggedAs(SourceMeta)
	assert.Equal(t, SourceIDs{Meta: "42"}, m.SourceIDs)

	tw := Campaign{ID: "abc"}.TaggedAs(SourceTripleWhale)
	assert.Equal(t, SourceIDs{TripleWhale: "abc"}, tw.SourceIDs)
	assert.Equal(t, 1, tw.SourceIDs.Count())
}

func TestApplyFlags(t *testing.T) {
	cs := []Campaign{
		{ID: "1", MinROAS: DefaultMinROAS, SourceIDs: SourceIDs{Meta: "1", TripleWhale: "a"}},
		{ID: "b", MinROAS: DefaultMinROAS, SourceIDs: SourceIDs{TripleWhale: "b"}},
	}
	flags := map[string]Flags{
		"meta:1": {IsSurfScaling: true, MinROAS: 4},
	}

	out := ApplyFlags(cs, flags)
	assert.True(t, out[0].IsSurfScaling)
	assert.Equal(t, 4.0, out[0].MinROAS)
	assert.False(t, out[1].IsSurfScaling)
	assert.False(t, cs[0].IsSurfScaling, "input must not be mutated")
}

func TestMigrateAccount(t *testing.T) {
	legacy := Account{ID: "a1", LegacyAdAccountID: "act_1"}
	got := MigrateAccount(legacy)
	if assert.NotNil(t, got.DataSources) {
		assert.True(t, got.DataSources.MetaEnabled())
		assert.Equal(t, "act_1", got.DataSources.Meta.AdAccountID)
		assert.Empty(t, got.DataSources.Meta.AccessToken)
		assert.False(t, got.DataSources.TripleWhaleEnabled())
	}

	modern := Account{ID: "a2", LegacyAdAccountID: "act_2", DataSources: &DataSources{}}
	assert.Same(t, modern.DataSources, MigrateAccount(modern).DataSources)

	bare := Account{ID: "a3"}
	assert.Nil(t, MigrateAccount(bare).DataSources)
}

func TestDeriveCPA(t *testing.T) {
	assert.Equal(t, 25.0, DeriveCPA(100, 4, 7))
	assert.Equal(t, 7.0, DeriveCPA(100, 0, 7))
}

func TestAccount_Redacted(t *testing.T) {
	a := Account{ID: "a", DataSources: &DataSources{
		Meta:        &MetaSource{Enabled: true, AdAccountID: "act_1", AccessToken: "secret"},
		TripleWhale: &TripleWhaleSource{Enabled: true, APIKey: "key"},
	}}
	r := a.Redacted()
	assert.Equal(t, "***", r.DataSources.Meta.AccessToken)
	assert.Equal(t, "act_1", r.DataSources.Meta.AdAccountID)
	assert.Equal(t, "***", r.DataSources.TripleWhale.APIKey)
	assert.Equal(t, "secret", a.DataSources.Meta.AccessToken, "original untouched")

	legacy := Account{ID: "b", LegacyAdAccountID: "act_2"}
	assert.Equal(t, legacy, legacy.Redacted())
}
