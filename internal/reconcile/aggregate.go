package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/observability"
	"surfscale-engine/internal/providers"
)

// ErrNoSources is the configuration error returned when an account has no source enabled.
const ErrNoSources = "no data sources enabled: enable Meta or Triple Whale"

// Aggregator fetches every enabled source of an account and reconciles the results.
type Aggregator struct {
	meta        providers.Fetcher
	tripleWhale providers.Fetcher
}

// NewAggregator wires the two adapters. Either may be nil when the source is
// not available in this deployment; accounts enabling it then get a warning.
func NewAggregator(meta, tripleWhale providers.Fetcher) *Aggregator {
	return &Aggregator{meta: meta, tripleWhale: tripleWhale}
}

// Fetch never returns a Go error: configuration problems, per-source failures
// and total failure are all reported in Result.Error. On partial failure Data
// holds what the healthy source returned and Error the "; "-joined warnings.
func (a *Aggregator) Fetch(ctx context.Context, account campaign.Account, period campaign.Period) providers.Result {
	account = campaign.MigrateAccount(account)
	ds := campaign.DataSources{}
	if account.DataSources != nil {
		ds = *account.DataSources
	}
	if !ds.MetaEnabled() && !ds.TripleWhaleEnabled() {
		return providers.Failf(ErrNoSources)
	}

	var metaRes, twRes providers.Result
	g, gctx := errgroup.WithContext(ctx)
	if ds.MetaEnabled() {
		g.Go(func() error {
			metaRes = a.fetchOne(gctx, a.meta, campaign.SourceMeta, account, period)
			return nil
		})
	}
	if ds.TripleWhaleEnabled() {
		g.Go(func() error {
			twRes = a.fetchOne(gctx, a.tripleWhale, campaign.SourceTripleWhale, account, period)
			return nil
		})
	}
	_ = g.Wait()

	var warnings []string
	if metaRes.Failed() {
		warnings = append(warnings, campaign.SourceMeta.Label()+": "+metaRes.Error)
	}
	if twRes.Failed() {
		warnings = append(warnings, campaign.SourceTripleWhale.Label()+": "+twRes.Error)
	}
	joined := strings.Join(warnings, "; ")

	if len(metaRes.Data) == 0 && len(twRes.Data) == 0 {
		if joined != "" {
			return providers.Failf(joined)
		}
		return providers.OK(nil)
	}

	merged, st := MergeWithStats(metaRes.Data, twRes.Data)
	observability.MergeMatches.WithLabelValues(string(MatchID)).Add(float64(st.ByID))
	observability.MergeMatches.WithLabelValues(string(MatchName)).Add(float64(st.ByName))
	log.Debug().
		Str("account", account.ID).
		Str("period", string(period)).
		Int("by_id", st.ByID).
		Int("by_name", st.ByName).
		Int("meta_only", st.PrimaryOnly).
		Int("tw_only", st.SecondaryOnly).
		Msg("campaigns reconciled")

	if joined != "" {
		log.Warn().Str("account", account.ID).Str("warnings", joined).Msg("partial source failure")
	}
	return providers.Result{Data: merged, Error: joined}
}

func (a *Aggregator) fetchOne(ctx context.Context, f providers.Fetcher, src campaign.Source, account campaign.Account, period campaign.Period) (res providers.Result) {
	if f == nil {
		return providers.Failf("source not configured")
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("source", string(src)).Msg("adapter panicked")
			res = providers.Failf("unknown error")
		}
		outcome := "ok"
		if res.Failed() {
			outcome = "error"
		}
		observability.ProviderFetches.WithLabelValues(string(src), outcome).Inc()
		observability.ProviderLatency.WithLabelValues(string(src)).Observe(time.Since(start).Seconds())
	}()
	return f.Fetch(ctx, account, period)
}
