package listener

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/engine"
)

const debounce = 200 * time.Millisecond

// ListenAndReload reloads rs from src whenever Postgres notifies channel.
// Lost connections are re-acquired after a jittered backoff. It returns when ctx ends.
func ListenAndReload(ctx context.Context, pool *pgxpool.Pool, rs *engine.RuleSet, src engine.RuleSource, channel string, baseBackoff time.Duration) {
	for {
		err := listen(ctx, pool, rs, src, channel)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Str("channel", channel).Dur("retry_in", backoff).Msg("listen connection lost")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listen(ctx context.Context, pool *pgxpool.Pool, rs *engine.RuleSet, src engine.RuleSource, channel string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for rule changes")

	// pick up anything changed while disconnected
	if err := rs.Reload(ctx, src); err != nil {
		log.Error().Err(err).Msg("reload rules error")
	}

	r := newReloader(debounce, func() {
		if err := rs.Reload(ctx, src); err != nil {
			log.Error().Err(err).Msg("reload rules error")
		}
	})
	defer r.stop()

	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		log.Info().Str("channel", ntf.Channel).Str("payload", ntf.Payload).Msg("rules changed")
		r.notify()
	}
}

// reloader coalesces bursts of notifications. The first change reloads at
// once; changes inside the window schedule a single trailing reload, so the
// last commit of a burst is always picked up.
type reloader struct {
	window time.Duration
	now    func() time.Time
	after  func(time.Duration, func()) *time.Timer
	run    func()

	mu      sync.Mutex
	last    time.Time
	pending *time.Timer
	running sync.Mutex
}

func newReloader(window time.Duration, run func()) *reloader {
	return &reloader{window: window, now: time.Now, after: time.AfterFunc, run: run}
}

func (r *reloader) notify() {
	r.mu.Lock()
	if r.pending != nil {
		r.mu.Unlock()
		return
	}
	if wait := r.window - r.now().Sub(r.last); wait > 0 {
		r.pending = r.after(wait, r.fire)
		r.mu.Unlock()
		log.Debug().Dur("in", wait).Msg("rule reload deferred")
		return
	}
	r.last = r.now()
	r.mu.Unlock()
	r.reload()
}

func (r *reloader) fire() {
	r.mu.Lock()
	r.pending = nil
	r.last = r.now()
	r.mu.Unlock()
	r.reload()
}

func (r *reloader) reload() {
	r.running.Lock()
	defer r.running.Unlock()
	r.run()
}

func (r *reloader) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
