package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Interval selects which hours of the day surf checks run.
type Interval string

const (
	Interval1H     Interval = "1H"
	Interval3H     Interval = "3H"
	Interval6H     Interval = "6H"
	IntervalCustom Interval = "CUSTOM"
)

var ErrNoActiveHours = errors.New("schedule has no active hours")

// HoursFor returns the active hours for iv. custom is only consulted for CUSTOM.
func HoursFor(iv Interval, custom []int) ([]int, error) {
	step := 0
	switch Interval(strings.ToUpper(string(iv))) {
	case Interval1H:
		step = 1
	case Interval3H:
		step = 3
	case Interval6H:
		step = 6
	case IntervalCustom:
		return normalizeHours(custom)
	default:
		return nil, fmt.Errorf("unknown interval %q", iv)
	}
	hours := make([]int, 0, 24/step)
	for h := 0; h < 24; h += step {
		hours = append(hours, h)
	}
	return hours, nil
}

func normalizeHours(in []int) ([]int, error) {
	seen := map[int]bool{}
	out := make([]int, 0, len(in))
	for _, h := range in {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("hour %d out of range 0-23", h)
		}
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	sort.Ints(out)
	return out, nil
}

// Schedule is a set of active hours in a time zone.
type Schedule struct {
	Interval Interval
	Hours    []int
	Location *time.Location
}

func NewSchedule(iv Interval, custom []int, loc *time.Location) (Schedule, error) {
	hours, err := HoursFor(iv, custom)
	if err != nil {
		return Schedule{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return Schedule{Interval: Interval(strings.ToUpper(string(iv))), Hours: hours, Location: loc}, nil
}

func (s Schedule) Active(hour int) bool {
	for _, h := range s.Hours {
		if h == hour {
			return true
		}
	}
	return false
}

// Next returns the first top of the hour strictly after now whose hour is
// active, or the zero time when no hour is.
func (s Schedule) Next(now time.Time) time.Time {
	if len(s.Hours) == 0 {
		return time.Time{}
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	cand := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc).Add(time.Hour)
	// 48 steps covers a full day even across a DST shift
	for i := 0; i < 48; i++ {
		if s.Active(cand.Hour()) {
			return cand
		}
		cand = cand.Add(time.Hour)
	}
	return time.Time{}
}

// Status is what the scheduler last did and will do next.
type Status struct {
	Interval  Interval  `json:"interval"`
	Hours     []int     `json:"activeHours"`
	LastCheck time.Time `json:"lastCheck"`
	NextCheck time.Time `json:"nextCheck"`
}

// Scheduler invokes a job at every active hour.
type Scheduler struct {
	schedule Schedule
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	mu        sync.RWMutex
	lastCheck time.Time
	nextCheck time.Time
}

func New(s Schedule) *Scheduler {
	return &Scheduler{schedule: s, now: time.Now, after: time.After}
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Interval:  s.schedule.Interval,
		Hours:     append([]int(nil), s.schedule.Hours...),
		LastCheck: s.lastCheck,
		NextCheck: s.nextCheck,
	}
}

// Run sleeps until each next check and calls fn. Job errors are logged and
// do not stop the loop. It returns nil when ctx ends.
func (s *Scheduler) Run(ctx context.Context, fn func(context.Context) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		next := s.schedule.Next(s.now())
		if next.IsZero() {
			return ErrNoActiveHours
		}
		s.mu.Lock()
		s.nextCheck = next
		s.mu.Unlock()
		log.Info().Time("next_check", next).Msg("surf check scheduled")

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(next.Sub(s.now())):
		}

		start := s.now()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled surf check failed")
		}
		s.mu.Lock()
		s.lastCheck = start
		s.mu.Unlock()
	}
}
