// Package meta adapts the Meta Marketing (Graph) API to canonical campaigns.
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/providers"
)

const (
	APIVersion     = "v21.0"
	DefaultBaseURL = "https://graph.facebook.com"

	// PageSize is the limit requested per Graph API page.
	PageSize = "100"
	maxPages = 100
)

var (
	errNoToken    = errors.New("access token missing")
	errNoAccounts = errors.New("no ad accounts found for this profile")
	hundred       = decimal.NewFromInt(100)
)

// purchase action types, in preference order
var purchaseROASTypes = []string{
	"purchase",
	"offsite_conversion.fb_pixel_purchase",
	"onsite_conversion.messaging_purchase_roas",
}

// Client talks to one Graph API endpoint. Safe for concurrent use.
type Client struct {
	baseURL string
	doer    *providers.Doer
}

func New(baseURL string, doer *providers.Doer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), doer: doer}
}

func (c *Client) Source() campaign.Source { return campaign.SourceMeta }

// Fetch returns the account's campaigns with insights for period, sorted by spend.
func (c *Client) Fetch(ctx context.Context, account campaign.Account, period campaign.Period) providers.Result {
	account = campaign.MigrateAccount(account)
	if account.DataSources == nil || account.DataSources.Meta == nil {
		return providers.Fail(errNoToken)
	}
	src := account.DataSources.Meta
	if src.AccessToken == "" {
		return providers.Fail(errNoToken)
	}
	adAccount := src.AdAccountID
	if adAccount == "" {
		adAccount = account.ID
	}

	cs, err := c.fetchCampaigns(ctx, adAccount, src.AccessToken, period)
	if err != nil {
		log.Error().Err(err).Str("source", "meta").Str("account", adAccount).Msg("fetch campaigns")
		return providers.Fail(err)
	}
	for i := range cs {
		cs[i].AccountID = account.ID
	}
	return providers.OK(cs)
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type campaignRow struct {
	ID             any    `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	DailyBudget    any    `json:"daily_budget"`
	LifetimeBudget any    `json:"lifetime_budget"`
	Objective      string `json:"objective"`
}

type actionValue struct {
	ActionType string `json:"action_type"`
	Value      any    `json:"value"`
}

type insightRow struct {
	CampaignID   any           `json:"campaign_id"`
	Spend        any           `json:"spend"`
	PurchaseROAS []actionValue `json:"purchase_roas"`
	Actions      []actionValue `json:"actions"`
	CPC          any           `json:"cpc"`
	CTR          any           `json:"inline_link_click_ctr"`
}

type adAccountRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type stats struct {
	spend, roas, conversions, cpc, ctr, cpa float64
}

func (c *Client) fetchCampaigns(ctx context.Context, adAccount, token string, period campaign.Period) ([]campaign.Campaign, error) {
	q := url.Values{}
	q.Set("fields", "id,name,status,daily_budget,lifetime_budget,objective")
	q.Set("limit", PageSize)
	rows, err := getAll[campaignRow](ctx, c, adAccount+"/campaigns", token, q)
	if err != nil {
		return nil, err
	}

	q = url.Values{}
	q.Set("fields", "campaign_id,spend,purchase_roas,conversions,actions,cpc,inline_link_click_ctr")
	q.Set("level", "campaign")
	q.Set("date_preset", DatePreset(period))
	q.Set("limit", PageSize)
	insights, err := getAll[insightRow](ctx, c, adAccount+"/insights", token, q)
	if err != nil {
		return nil, fmt.Errorf("insights error: %w", err)
	}

	byID := make(map[string]stats, len(insights))
	for _, it := range insights {
		s := stats{
			spend: providers.Float(it.Spend),
			roas:  purchaseROAS(it.PurchaseROAS),
			cpc:   providers.Float(it.CPC),
			ctr:   providers.Float(it.CTR),
		}
		for _, a := range it.Actions {
			if a.ActionType == "purchase" || a.ActionType == "offsite_conversion.fb_pixel_purchase" {
				s.conversions = providers.Float(a.Value)
				break
			}
		}
		s.cpa = campaign.DeriveCPA(s.spend, s.conversions, 0)
		byID[providers.String(it.CampaignID)] = s
	}

	out := make([]campaign.Campaign, 0, len(rows))
	for _, rc := range rows {
		id := providers.String(rc.ID)
		if id == "" {
			log.Warn().Str("source", "meta").Str("account", adAccount).Str("name", rc.Name).Msg("campaign without id skipped")
			continue
		}
		s := byID[id]
		objective := rc.Objective
		if objective == "" {
			objective = campaign.DefaultObjective
		}
		out = append(out, campaign.Campaign{
			ID:          id,
			Name:        rc.Name,
			Objective:   objective,
			Budget:      centsToUnits(rc.DailyBudget, rc.LifetimeBudget),
			Spend:       s.spend,
			ROAS:        s.roas,
			Conversions: s.conversions,
			CPC:         s.cpc,
			CTR:         s.ctr,
			CPA:         s.cpa,
			Status:      campaign.ParseStatus(rc.Status),
			MinROAS:     campaign.DefaultMinROAS,
			SourceIDs:   campaign.SourceIDs{Meta: id},
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spend > out[j].Spend })
	return out, nil
}

// DatePreset maps a canonical period to Meta's date_preset vocabulary.
func DatePreset(p campaign.Period) string {
	switch campaign.ParsePeriod(string(p)) {
	case campaign.PeriodYesterday:
		return "yesterday"
	case campaign.PeriodLast7d:
		return "last_7d"
	default:
		return "today"
	}
}

func purchaseROAS(vals []actionValue) float64 {
	for _, want := range purchaseROASTypes {
		for _, v := range vals {
			if v.ActionType == want {
				return providers.Float(v.Value)
			}
		}
	}
	if len(vals) > 0 {
		return providers.Float(vals[0].Value)
	}
	return 0
}

// Meta reports budgets in minor currency units.
func centsToUnits(daily, lifetime any) float64 {
	raw := providers.Float(daily)
	if raw == 0 {
		raw = providers.Float(lifetime)
	}
	f, _ := decimal.NewFromFloat(raw).Div(hundred).Float64()
	return f
}

func unitsToCents(budget float64) string {
	if budget < 0 {
		budget = 0
	}
	return decimal.NewFromFloat(budget).Mul(hundred).Round(0).String()
}

type paging struct {
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

// after returns the cursor of the following page, or "" on the last page.
// Graph API only sets next when more rows exist.
func (p paging) after() string {
	if p.Next == "" {
		return ""
	}
	if p.Cursors.After != "" {
		return p.Cursors.After
	}
	if u, err := url.Parse(p.Next); err == nil {
		return u.Query().Get("after")
	}
	return ""
}

type page[T any] struct {
	Data   []T       `json:"data"`
	Paging paging    `json:"paging"`
	Error  *apiError `json:"error"`
}

// getAll reads every page of an edge. The next URL is not followed
// directly; its cursor is replayed against our own endpoint.
func getAll[T any](ctx context.Context, c *Client, path, token string, q url.Values) ([]T, error) {
	out := []T{}
	for n := 0; n < maxPages; n++ {
		var p page[T]
		if err := c.get(ctx, path, token, q, &p); err != nil {
			return nil, err
		}
		if p.Error != nil {
			return nil, errors.New(p.Error.Message)
		}
		out = append(out, p.Data...)
		after := p.Paging.after()
		if after == "" {
			return out, nil
		}
		log.Debug().Str("edge", path).Int("page", n+1).Int("rows", len(out)).Msg("following Graph API cursor")
		q.Set("after", after)
	}
	return nil, fmt.Errorf("%s: more than %d pages", path, maxPages)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + APIVersion + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) get(ctx context.Context, path, token string, q url.Values, out any) error {
	q.Set("access_token", token)
	u := c.endpoint(path) + "?" + q.Encode()
	return c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, out)
}

func (c *Client) send(ctx context.Context, newReq func(context.Context) (*http.Request, error), out any) error {
	resp, err := c.doer.Do(ctx, newReq)
	if err != nil {
		return fmt.Errorf("network error: cannot reach Meta API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var env struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(body, &env) == nil && env.Error != nil && env.Error.Message != "" {
			return errors.New(env.Error.Message)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListAdAccounts returns the ad accounts visible to token.
func (c *Client) ListAdAccounts(ctx context.Context, token string) ([]campaign.Account, error) {
	if token == "" {
		return nil, errNoToken
	}
	q := url.Values{}
	q.Set("fields", "id,name,currency,account_status")
	q.Set("limit", PageSize)
	rows, err := getAll[adAccountRow](ctx, c, "me/adaccounts", token, q)
	if err != nil {
		return nil, fmt.Errorf("meta error: %w", err)
	}
	if len(rows) == 0 {
		return nil, errNoAccounts
	}
	out := make([]campaign.Account, 0, len(rows))
	for _, a := range rows {
		name := a.Name
		if name == "" {
			name = a.ID
		}
		out = append(out, campaign.Account{
			ID:       a.ID,
			Name:     name,
			Currency: a.Currency,
			DataSources: &campaign.DataSources{
				Meta: &campaign.MetaSource{Enabled: true, AdAccountID: a.ID, AccessToken: token},
			},
		})
	}
	return out, nil
}

// UpdateBudget writes a new daily budget back to Meta; pause also sets status PAUSED.
func (c *Client) UpdateBudget(ctx context.Context, token, campaignID string, budget float64, pause bool) error {
	if token == "" {
		return errNoToken
	}
	form := url.Values{}
	form.Set("access_token", token)
	if pause {
		form.Set("status", string(campaign.StatusPaused))
	} else {
		form.Set("daily_budget", unitsToCents(budget))
	}
	body := form.Encode()
	u := c.endpoint(campaignID)

	var resp struct {
		Success bool      `json:"success"`
		Error   *apiError `json:"error"`
	}
	err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("meta error: %s", resp.Error.Message)
	}
	if !resp.Success {
		return fmt.Errorf("meta rejected budget update for campaign %s", campaignID)
	}
	return nil
}
