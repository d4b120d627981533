package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrMaxRetries is returned when every attempt was rate limited.
var ErrMaxRetries = errors.New("max retries exceeded")

const (
	DefaultAttempts   = 3
	DefaultBaseDelay  = time.Second
	DefaultRetryAfter = 60 * time.Second
)

// Doer sends requests with pacing and bounded retries:
//   - 429 waits Retry-After seconds (DefaultRetryAfter when absent) and retries;
//   - transport errors and other non-2xx back off BaseDelay * 2^attempt;
//   - the last attempt's response is returned as-is, whatever its status.
type Doer struct {
	Client     *http.Client
	Pacer      *Pacer
	Attempts   int
	BaseDelay  time.Duration
	RetryAfter time.Duration
	Name       string // used in logs

	sleep func(context.Context, time.Duration) error
}

// NewDoer returns a Doer with the default retry bounds.
func NewDoer(name string, client *http.Client, pacer *Pacer) *Doer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Doer{
		Client:     client,
		Pacer:      pacer,
		Attempts:   DefaultAttempts,
		BaseDelay:  DefaultBaseDelay,
		RetryAfter: DefaultRetryAfter,
		Name:       name,
	}
}

// Do sends the request built by newReq, rebuilding it for every attempt.
// The caller owns the returned body.
func (d *Doer) Do(ctx context.Context, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	attempts := d.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := d.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 0; attempt < attempts; attempt++ {
		last := attempt == attempts-1

		if err := d.Pacer.Acquire(ctx); err != nil {
			return nil, err
		}
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := d.Client.Do(req)
		if err != nil {
			if last || ctx.Err() != nil {
				return nil, err
			}
			wait := d.backoff(attempt)
			log.Debug().Err(err).Str("source", d.Name).Int("attempt", attempt+1).Dur("retry_in", wait).Msg("request failed")
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := d.retryAfter(resp.Header.Get("Retry-After"))
			drain(resp)
			if last {
				break
			}
			log.Warn().Str("source", d.Name).Int("attempt", attempt+1).Dur("retry_in", wait).Msg("rate limited")
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 300 || last {
			return resp, nil
		}

		drain(resp)
		wait := d.backoff(attempt)
		log.Debug().Str("source", d.Name).Int("status", resp.StatusCode).Int("attempt", attempt+1).Dur("retry_in", wait).Msg("retrying")
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, ErrMaxRetries
}

func (d *Doer) backoff(attempt int) time.Duration {
	base := d.BaseDelay
	if base < 0 {
		base = 0
	}
	return base << attempt
}

func (d *Doer) retryAfter(h string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if d.RetryAfter > 0 {
		return d.RetryAfter
	}
	return DefaultRetryAfter
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
