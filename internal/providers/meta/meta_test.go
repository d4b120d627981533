package meta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/providers"
)

const campaignsJSON = `{"data":[
 {"id":"111","name":"Winter Sale","status":"ACTIVE","daily_budget":"50000","objective":"OUTCOME_SALES"},
 {"id":"222","name":"Brand NL","status":"PAUSED","lifetime_budget":"12345"},
 {"id":"333","name":"No Stats","status":"ACTIVE"}
]}`

const insightsJSON = `{"data":[
 {"campaign_id":"111","spend":"100.50","cpc":"0.45","inline_link_click_ctr":"1.8",
  "purchase_roas":[{"action_type":"omni_purchase","value":"9.9"},{"action_type":"offsite_conversion.fb_pixel_purchase","value":"4.2"}],
  "actions":[{"action_type":"link_click","value":"300"},{"action_type":"purchase","value":"10"}]},
 {"campaign_id":"222","spend":"900","purchase_roas":[{"action_type":"omni_purchase","value":"1.5"}],"cpc":"n/a"}
]}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	d := providers.NewDoer("meta", srv.Client(), nil)
	d.Attempts = 1
	return New(srv.URL, d)
}

func account(token string) campaign.Account {
	return campaign.Account{
		ID: "act_1",
		DataSources: &campaign.DataSources{
			Meta: &campaign.MetaSource{Enabled: true, AdAccountID: "act_1", AccessToken: token},
		},
	}
}

func TestFetch_NormalizesCampaigns(t *testing.T) {
	var preset string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		switch r.URL.Path {
		case "/v21.0/act_1/campaigns":
			_, _ = w.Write([]byte(campaignsJSON))
		case "/v21.0/act_1/insights":
			preset = r.URL.Query().Get("date_preset")
			_, _ = w.Write([]byte(insightsJSON))
		default:
			http.NotFound(w, r)
		}
	})

	res := c.Fetch(context.Background(), account("tok"), campaign.PeriodLast7d)
	require.False(t, res.Failed(), res.Error)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "last_7d", preset)

	// sorted by spend desc
	assert.Equal(t, []string{"222", "111", "333"}, []string{res.Data[0].ID, res.Data[1].ID, res.Data[2].ID})

	ws := res.Data[1]
	assert.Equal(t, "act_1", ws.AccountID)
	assert.Equal(t, 500.0, ws.Budget)
	assert.Equal(t, 100.5, ws.Spend)
	assert.Equal(t, 4.2, ws.ROAS)
	assert.Equal(t, 10.0, ws.Conversions)
	assert.InDelta(t, 10.05, ws.CPA, 1e-9)
	assert.Equal(t, 0.45, ws.CPC)
	assert.Equal(t, 1.8, ws.CTR)
	assert.Equal(t, campaign.StatusActive, ws.Status)
	assert.Equal(t, campaign.SourceIDs{Meta: "111"}, ws.SourceIDs)
	assert.Equal(t, campaign.DefaultMinROAS, ws.MinROAS)
	assert.False(t, ws.IsSurfScaling)

	brand := res.Data[0]
	assert.Equal(t, 123.45, brand.Budget)
	assert.Equal(t, 1.5, brand.ROAS, "falls back to first purchase_roas entry")
	assert.Equal(t, 0.0, brand.CPC, "non-numeric coerces to zero")
	assert.Equal(t, campaign.StatusPaused, brand.Status)
	assert.Equal(t, campaign.DefaultObjective, brand.Objective)

	empty := res.Data[2]
	assert.Zero(t, empty.Spend)
	assert.Zero(t, empty.CPA)
}

func TestFetch_FollowsPages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		q := r.URL.Query()
		assert.Equal(t, PageSize, q.Get("limit"))
		assert.Equal(t, "tok", q.Get("access_token"))
		switch r.URL.Path + "@" + q.Get("after") {
		case "/v21.0/act_1/campaigns@":
			_, _ = w.Write([]byte(`{"data":[{"id":"1","name":"A","daily_budget":"1000"},{"name":"no id"}],
				"paging":{"cursors":{"after":"c2"},"next":"` + base + `/v21.0/act_1/campaigns?after=c2"}}`))
		case "/v21.0/act_1/campaigns@c2":
			_, _ = w.Write([]byte(`{"data":[{"id":"2","name":"B","daily_budget":"2000"}],"paging":{"cursors":{"after":"end"}}}`))
		case "/v21.0/act_1/insights@":
			_, _ = w.Write([]byte(`{"data":[{"campaign_id":"1","spend":"10"}],
				"paging":{"next":"` + base + `/v21.0/act_1/insights?limit=100&after=i2"}}`))
		case "/v21.0/act_1/insights@i2":
			_, _ = w.Write([]byte(`{"data":[{"campaign_id":"2","spend":"20"}]}`))
		default:
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
			http.NotFound(w, r)
		}
	})

	res := c.Fetch(context.Background(), account("tok"), campaign.PeriodToday)
	require.False(t, res.Failed(), res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "2", res.Data[0].ID)
	assert.Equal(t, 20.0, res.Data[0].Spend, "metrics from the second insights page")
	assert.Equal(t, 10.0, res.Data[1].Spend)
	assert.Equal(t, 10.0, res.Data[1].Budget)
}

func TestPagingAfter(t *testing.T) {
	tests := []struct {
		name string
		p    paging
		want string
	}{
		{"last page", paging{}, ""},
		{"cursor without next", func() paging { var p paging; p.Cursors.After = "x"; return p }(), ""},
		{"cursor", func() paging { p := paging{Next: "https://g/x?after=y"}; p.Cursors.After = "x"; return p }(), "x"},
		{"next url only", paging{Next: "https://g/x?limit=1&after=y"}, "y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.after())
		})
	}
}

func TestFetch_Errors(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		c := New("http://unused", providers.NewDoer("meta", nil, nil))
		res := c.Fetch(context.Background(), account(""), campaign.PeriodToday)
		assert.True(t, res.Failed())
		assert.Empty(t, res.Data)
	})

	t.Run("campaigns api error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token."}}`))
		})
		res := c.Fetch(context.Background(), account("bad"), campaign.PeriodToday)
		assert.Equal(t, "Invalid OAuth access token.", res.Error)
		assert.NotNil(t, res.Data)
		assert.Empty(t, res.Data)
	})

	t.Run("insights error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v21.0/act_1/campaigns" {
				_, _ = w.Write([]byte(campaignsJSON))
				return
			}
			_, _ = w.Write([]byte(`{"error":{"message":"rate"}}`))
		})
		res := c.Fetch(context.Background(), account("tok"), campaign.PeriodToday)
		assert.Equal(t, "insights error: rate", res.Error)
		assert.Empty(t, res.Data)
	})
}

func TestDatePreset(t *testing.T) {
	assert.Equal(t, "today", DatePreset(campaign.PeriodToday))
	assert.Equal(t, "yesterday", DatePreset(campaign.PeriodYesterday))
	assert.Equal(t, "last_7d", DatePreset(campaign.PeriodLast7d))
	assert.Equal(t, "today", DatePreset("last_90d"))
}

func TestUpdateBudget(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = map[string]string{
			"path":         r.URL.Path,
			"daily_budget": r.PostForm.Get("daily_budget"),
			"status":       r.PostForm.Get("status"),
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, c.UpdateBudget(context.Background(), "tok", "111", 600.005, false))
	assert.Equal(t, "/v21.0/111", got["path"])
	assert.Equal(t, "60001", got["daily_budget"])
	assert.Empty(t, got["status"])

	require.NoError(t, c.UpdateBudget(context.Background(), "tok", "111", 0, true))
	assert.Equal(t, "PAUSED", got["status"])
}

func TestListAdAccounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/me/adaccounts", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"act_9","currency":"EUR"}]}`))
	})
	accs, err := c.ListAdAccounts(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, accs, 1)
	assert.Equal(t, "act_9", accs[0].Name)
	assert.True(t, accs[0].DataSources.MetaEnabled())
}
