// Package surf runs surf-scaling for stored accounts: it serves the
// reconciled campaign view with user flags applied, runs the batch rule
// cycle, persists the resulting logs and optionally writes budgets back to Meta.
package surf

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/engine"
	"surfscale-engine/internal/observability"
	"surfscale-engine/internal/providers"
	"surfscale-engine/internal/storage"
)

var (
	ErrInvalidKey     = errors.New("invalid campaign key")
	ErrInvalidRules   = errors.New("invalid rules")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrNoMetaToken    = errors.New("no Meta access token")
	ErrUpstream       = errors.New("upstream error")
)

// writable global settings
var settingKeys = map[string]bool{
	storage.SettingMetaAccessToken: true,
}

// Aggregator is the multi-source fetch entry point.
type Aggregator interface {
	Fetch(ctx context.Context, account campaign.Account, period campaign.Period) providers.Result
}

// BudgetWriter pushes a budget change to the ad platform.
type BudgetWriter interface {
	UpdateBudget(ctx context.Context, token, campaignID string, budget float64, pause bool) error
}

// AccountLister discovers the ad accounts a Meta token can see.
type AccountLister interface {
	ListAdAccounts(ctx context.Context, token string) ([]campaign.Account, error)
}

type Service struct {
	store  storage.Store
	cache  storage.CampaignCache
	agg    Aggregator
	rules  *engine.RuleSet
	engine *engine.Engine
	writer BudgetWriter
	lister AccountLister
	period campaign.Period
}

type Option func(*Service)

// WithBudgetWriter enables write-back of cycle results.
func WithBudgetWriter(w BudgetWriter) Option { return func(s *Service) { s.writer = w } }

// WithAccountLister enables ImportMetaAccounts.
func WithAccountLister(l AccountLister) Option { return func(s *Service) { s.lister = l } }

// WithPeriod sets the reporting period cycles evaluate. Default today.
func WithPeriod(p campaign.Period) Option { return func(s *Service) { s.period = p } }

func NewService(st storage.Store, cache storage.CampaignCache, agg Aggregator, rules *engine.RuleSet, eng *engine.Engine, opts ...Option) *Service {
	s := &Service{store: st, cache: cache, agg: agg, rules: rules, engine: eng, period: campaign.PeriodToday}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Account loads a stored account, upgrading legacy records. A Meta source
// without its own token falls back to the global token setting.
func (s *Service) Account(ctx context.Context, id string) (campaign.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return campaign.Account{}, err
	}
	a = campaign.MigrateAccount(a)
	if a.DataSources != nil && a.DataSources.Meta != nil && a.DataSources.Meta.AccessToken == "" {
		tok, err := s.store.GetSetting(ctx, storage.SettingMetaAccessToken)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return campaign.Account{}, err
		}
		meta := *a.DataSources.Meta
		meta.AccessToken = tok
		ds := *a.DataSources
		ds.Meta = &meta
		a.DataSources = &ds
	}
	return a, nil
}

// Campaigns returns the reconciled campaigns of an account with persisted
// flags applied. Results are served from cache while fresh. The returned
// Result follows the provider contract, so partial failures carry both data
// and warnings; the error return is reserved for store failures.
func (s *Service) Campaigns(ctx context.Context, accountID string, period campaign.Period) (providers.Result, error) {
	a, err := s.Account(ctx, accountID)
	if err != nil {
		return providers.Result{}, err
	}
	return s.campaigns(ctx, a, period)
}

func (s *Service) campaigns(ctx context.Context, a campaign.Account, period campaign.Period) (providers.Result, error) {
	flags, err := s.store.LoadFlags(ctx, a.ID)
	if err != nil {
		return providers.Result{}, err
	}

	if cs, ok := s.cache.Get(ctx, a.ID, period); ok {
		log.Debug().Str("account", a.ID).Str("period", string(period)).Msg("campaigns served from cache")
		return providers.OK(campaign.ApplyFlags(cs, flags)), nil
	}

	res := s.agg.Fetch(ctx, a, period)
	if len(res.Data) > 0 || !res.Failed() {
		if err := s.cache.Put(ctx, a.ID, period, res.Data); err != nil {
			log.Warn().Err(err).Str("account", a.ID).Msg("campaign cache write failed")
		}
	}
	res.Data = campaign.ApplyFlags(res.Data, flags)
	return res, nil
}

// SetSurfScaling toggles surf-scaling for the campaign identified by its Ref key.
func (s *Service) SetSurfScaling(ctx context.Context, accountID, key string, on bool) error {
	if _, ok := campaign.ParseRefKey(key); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return err
	}
	flags, err := s.store.LoadFlags(ctx, accountID)
	if err != nil {
		return err
	}
	f := flags[key]
	f.IsSurfScaling = on
	if err := s.store.SaveFlag(ctx, accountID, key, f); err != nil {
		return err
	}
	log.Info().Str("account", accountID).Str("campaign", key).Bool("surf", on).Msg("surf-scaling toggled")
	return nil
}

// RunCycle evaluates the current rules against the account's campaigns once,
// appends the logs and caches the adjusted campaigns.
func (s *Service) RunCycle(ctx context.Context, accountID string) (engine.CycleResult, error) {
	a, err := s.Account(ctx, accountID)
	if err != nil {
		observability.CycleRuns.WithLabelValues("error").Inc()
		return engine.CycleResult{}, err
	}
	res, err := s.campaigns(ctx, a, s.period)
	if err != nil {
		observability.CycleRuns.WithLabelValues("error").Inc()
		return engine.CycleResult{}, err
	}
	if res.Failed() && len(res.Data) == 0 {
		observability.CycleRuns.WithLabelValues("error").Inc()
		return engine.CycleResult{}, fmt.Errorf("fetch campaigns for %s: %s", a.ID, res.Error)
	}
	if res.Failed() {
		log.Warn().Str("account", a.ID).Str("warnings", res.Error).Msg("cycle running on partial data")
	}

	out := s.engine.RunCycle(res.Data, s.rules.Rules())

	if err := s.store.AppendLogs(ctx, out.Logs); err != nil {
		observability.CycleRuns.WithLabelValues("error").Inc()
		return engine.CycleResult{}, fmt.Errorf("append surf logs: %w", err)
	}
	if err := s.cache.Put(ctx, a.ID, s.period, out.Campaigns); err != nil {
		log.Warn().Err(err).Str("account", a.ID).Msg("campaign cache write failed")
	}

	for _, l := range out.Logs {
		observability.RuleFires.WithLabelValues(l.RuleID, string(l.ActionType)).Inc()
	}
	observability.MonitoredCampaigns.Set(float64(out.Summary.Monitored))
	observability.CycleRuns.WithLabelValues("ok").Inc()
	log.Info().Str("account", a.ID).Int("monitored", out.Summary.Monitored).
		Int("adjustments", out.Summary.Adjustments).Msg(out.Summary.Text)

	s.writeBack(ctx, a, out)
	return out, nil
}

// writeBack pushes changed budgets to Meta. Failures are logged only: the
// logs are already persisted and the next cycle will see the live budget.
func (s *Service) writeBack(ctx context.Context, a campaign.Account, out engine.CycleResult) {
	if s.writer == nil || len(out.Logs) == 0 {
		return
	}
	if a.DataSources == nil || a.DataSources.Meta == nil || a.DataSources.Meta.AccessToken == "" {
		log.Warn().Str("account", a.ID).Msg("budget write-back skipped: no Meta token")
		return
	}
	byID := make(map[string]campaign.Campaign, len(out.Campaigns))
	for _, c := range out.Campaigns {
		byID[c.ID] = c
	}
	for _, l := range out.Logs {
		c, ok := byID[l.CampaignID]
		if !ok || c.SourceIDs.Meta == "" {
			log.Debug().Str("campaign", l.CampaignID).Msg("no Meta id; write-back skipped")
			continue
		}
		pause := l.ActionType == engine.ActionPause
		if err := s.writer.UpdateBudget(ctx, a.DataSources.Meta.AccessToken, c.SourceIDs.Meta, c.Budget, pause); err != nil {
			log.Error().Err(err).Str("campaign", c.SourceIDs.Meta).Str("rule", l.RuleID).Msg("budget write-back failed")
		}
	}
}

// RunAll runs a cycle for every active stored account.
func (s *Service) RunAll(ctx context.Context) error {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, a := range accounts {
		if !a.IsActive {
			continue
		}
		if _, err := s.RunCycle(ctx, a.ID); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", a.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Refresh drops the cached campaigns of an account and fetches them again.
func (s *Service) Refresh(ctx context.Context, accountID string, period campaign.Period) (providers.Result, error) {
	a, err := s.Account(ctx, accountID)
	if err != nil {
		return providers.Result{}, err
	}
	if err := s.cache.Invalidate(ctx, a.ID); err != nil {
		return providers.Result{}, fmt.Errorf("invalidate campaign cache: %w", err)
	}
	log.Info().Str("account", a.ID).Msg("campaigns manually refreshed")
	return s.campaigns(ctx, a, period)
}

// Accounts lists stored accounts with credentials masked.
func (s *Service) Accounts(ctx context.Context) ([]campaign.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]campaign.Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.Redacted()
	}
	return out, nil
}

// ImportMetaAccounts stores every Meta ad account visible to token that is
// not stored yet. A non-empty token that Meta accepts replaces the global
// token setting; an empty one uses the stored setting. Imported accounts carry no token of
// their own and resolve it from the setting.
func (s *Service) ImportMetaAccounts(ctx context.Context, token string) ([]campaign.Account, error) {
	if s.lister == nil {
		return nil, fmt.Errorf("%w: account discovery not configured", ErrUpstream)
	}
	fresh := token != ""
	if !fresh {
		tok, err := s.store.GetSetting(ctx, storage.SettingMetaAccessToken)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && tok == "") {
			return nil, ErrNoMetaToken
		}
		if err != nil {
			return nil, err
		}
		token = tok
	}

	found, err := s.lister.ListAdAccounts(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if fresh {
		if err := s.store.SaveSetting(ctx, storage.SettingMetaAccessToken, token); err != nil {
			return nil, err
		}
	}
	imported := []campaign.Account{}
	for _, a := range found {
		if _, err := s.store.GetAccount(ctx, a.ID); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		a.IsActive = true
		if a.DataSources != nil && a.DataSources.Meta != nil {
			meta := *a.DataSources.Meta
			meta.AccessToken = ""
			a.DataSources = &campaign.DataSources{Meta: &meta}
		}
		if err := s.store.SaveAccount(ctx, a); err != nil {
			return nil, err
		}
		imported = append(imported, a)
	}
	log.Info().Int("found", len(found)).Int("imported", len(imported)).Msg("Meta ad accounts imported")
	return imported, nil
}

// SaveSetting stores a writable global setting.
func (s *Service) SaveSetting(ctx context.Context, key, value string) error {
	if !settingKeys[key] {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	if err := s.store.SaveSetting(ctx, key, value); err != nil {
		return err
	}
	log.Info().Str("setting", key).Msg("setting updated")
	return nil
}

// SaveRules validates and persists a new ordered rule list and makes it live.
func (s *Service) SaveRules(ctx context.Context, rules []engine.Rule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: rules[%d]: %v", ErrInvalidRules, i, err)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRules, r.ID)
		}
		seen[r.ID] = true
	}
	if err := s.store.SaveRules(ctx, rules); err != nil {
		return err
	}
	s.rules.Store(rules)
	log.Info().Int("rules", len(rules)).Msg("rule set saved")
	return nil
}

func (s *Service) Logs(ctx context.Context, limit int) ([]engine.SurfLog, error) {
	return s.store.RecentLogs(ctx, limit)
}

func (s *Service) Rules() []engine.Rule { return s.rules.Rules() }
