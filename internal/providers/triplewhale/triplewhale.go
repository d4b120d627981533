// Package triplewhale adapts the Triple Whale attribution API to canonical campaigns.
package triplewhale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/providers"
)

const DefaultBaseURL = "https://api.triplewhale.com/api/v1"

var errNoAPIKey = errors.New("API key missing")

// Client is safe for concurrent use. Share one Pacer between every Client
// pointed at the same base URL.
type Client struct {
	baseURL string
	doer    *providers.Doer
	now     func() time.Time
}

func New(baseURL string, doer *providers.Doer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), doer: doer, now: time.Now}
}

func (c *Client) Source() campaign.Source { return campaign.SourceTripleWhale }

// Fetch returns the store's campaigns for period.
func (c *Client) Fetch(ctx context.Context, account campaign.Account, period campaign.Period) providers.Result {
	if account.DataSources == nil || account.DataSources.TripleWhale == nil || account.DataSources.TripleWhale.APIKey == "" {
		return providers.Fail(errNoAPIKey)
	}
	src := account.DataSources.TripleWhale

	cs, err := c.fetch(ctx, src.APIKey, src.StoreID, period)
	if err != nil {
		log.Error().Err(err).Str("source", "triple_whale").Str("account", account.ID).Msg("fetch campaigns")
		return providers.Fail(err)
	}
	for i := range cs {
		cs[i].AccountID = account.ID
	}
	return providers.OK(cs)
}

func (c *Client) fetch(ctx context.Context, apiKey, storeID string, period campaign.Period) ([]campaign.Campaign, error) {
	start, end := period.DateRange(c.now())
	q := url.Values{}
	if storeID != "" {
		q.Set("store_id", storeID)
	}
	q.Set("start_date", start)
	q.Set("end_date", end)

	resp, err := c.doer.Do(ctx, c.request(c.baseURL+"/campaigns?"+q.Encode(), apiKey))
	if err != nil {
		return nil, fmt.Errorf("network error fetching Triple Whale data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Triple Whale API error: %s", errorMessage(resp))
	}

	var body map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode Triple Whale response: %w", err)
	}

	items, _ := providers.First(body, "data", "campaigns").([]any)
	out := make([]campaign.Campaign, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		c := normalize(m)
		if c.ID == "" {
			log.Warn().Str("source", "triple_whale").Str("name", c.Name).Msg("campaign without id skipped")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// normalize maps one loosely shaped campaign object; field names vary by endpoint.
func normalize(m map[string]any) campaign.Campaign {
	id := providers.String(providers.First(m, "campaign_id", "id", "campaignId"))
	spend := providers.Float(providers.First(m, "spend", "cost"))
	revenue := providers.Float(providers.First(m, "revenue", "total_revenue"))
	roas := providers.Float(providers.First(m, "roas", "roas_value"))
	if roas == 0 && revenue != 0 && spend != 0 {
		roas = revenue / spend
	}
	orders := providers.Float(providers.First(m, "orders", "conversions", "purchases"))

	status := campaign.StatusActive
	if s, ok := m["status"].(string); ok && s != "" {
		status = campaign.ParseStatus(s)
	}

	return campaign.Campaign{
		ID:          id,
		Name:        providers.String(providers.First(m, "campaign_name", "name", "campaignName")),
		Objective:   campaign.DefaultObjective,
		Spend:       spend,
		Revenue:     revenue,
		ROAS:        roas,
		Conversions: orders,
		CPC:         providers.Float(m["cpc"]),
		CTR:         providers.Float(m["ctr"]),
		CPA:         campaign.DeriveCPA(spend, orders, 0),
		Status:      status,
		MinROAS:     campaign.DefaultMinROAS,
		SourceIDs:   campaign.SourceIDs{TripleWhale: id},
		XRef:        campaign.SourceIDs{Meta: providers.String(providers.First(m, "meta_campaign_id", "fb_campaign_id"))},
	}
}

// TestConnection checks credentials with a single attempt.
func (c *Client) TestConnection(ctx context.Context, apiKey, storeID string) error {
	if apiKey == "" {
		return errNoAPIKey
	}
	u := c.baseURL + "/me"
	if storeID != "" {
		u = c.baseURL + "/stores/" + url.PathEscape(storeID)
	}

	once := *c.doer
	once.Attempts = 1
	resp, err := once.Do(ctx, c.request(u, apiKey))
	if err != nil {
		return fmt.Errorf("cannot reach Triple Whale API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New(errorMessage(resp))
	}
	return nil
}

func (c *Client) request(u, apiKey string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}

func errorMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
