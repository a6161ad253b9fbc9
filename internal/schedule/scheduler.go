// Package schedule fires jobs at fixed times of day, at most once per
// calendar day per slot. The timer loop performs no business logic itself:
// firing means handing the job across a bounded channel into the dispatch
// runtime.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"couponflow/internal/domain"
)

// Slot binds one time-of-day (standard cron spec) to one job.
type Slot struct {
	Spec string
	Job  domain.Job
}

// DefaultTable mirrors the production schedule: the claim sweep mid-morning,
// the digest with breakfast, the expiry check in the evening, and meal
// reminders at the start of each slot.
func DefaultTable() []Slot {
	return []Slot{
		{"0 9 * * *", domain.Job{Kind: domain.JobTodayDigest}},
		{"30 10 * * *", domain.Job{Kind: domain.JobClaim}},
		{"0 20 * * *", domain.Job{Kind: domain.JobExpiryCheck}},
		{"30 7 * * *", domain.Job{Kind: domain.JobMealReminder, Meal: domain.MealBreakfast}},
		{"30 11 * * *", domain.Job{Kind: domain.JobMealReminder, Meal: domain.MealLunch}},
		{"0 15 * * *", domain.Job{Kind: domain.JobMealReminder, Meal: domain.MealTea}},
		{"30 17 * * *", domain.Job{Kind: domain.JobMealReminder, Meal: domain.MealDinner}},
		{"30 21 * * *", domain.Job{Kind: domain.JobMealReminder, Meal: domain.MealLateNight}},
	}
}

type slot struct {
	Slot
	sched cron.Schedule
}

type Scheduler struct {
	slots    []slot
	fired    map[int]time.Time // slot index -> date last fired
	submit   func(domain.Job) bool
	interval time.Duration
	now      func() time.Time
	stop     chan struct{}
}

// New validates every slot spec and returns a scheduler ticking at
// checkInterval (capped at one minute so a slot is never overshot by more
// than one tick).
func New(table []Slot, submit func(domain.Job) bool, checkInterval time.Duration) (*Scheduler, error) {
	if checkInterval <= 0 || checkInterval > time.Minute {
		checkInterval = 30 * time.Second
	}
	s := &Scheduler{
		fired:    make(map[int]time.Time),
		submit:   submit,
		interval: checkInterval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, entry := range table {
		sched, err := cron.ParseStandard(entry.Spec)
		if err != nil {
			return nil, fmt.Errorf("schedule: invalid spec %q: %w", entry.Spec, err)
		}
		s.slots = append(s.slots, slot{Slot: entry, sched: sched})
	}
	return s, nil
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Int("slots", len(s.slots)).Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

// Tick fires every slot whose time of day has passed today and which has not
// fired today yet. Tracking the last-fired date (rather than an exact time
// match) tolerates tick jitter, restarts and DST shifts without
// double-firing or double-skipping a slot.
func (s *Scheduler) Tick(now time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i := range s.slots {
		if sameDay(s.fired[i], now) {
			continue
		}
		due := s.slots[i].sched.Next(midnight.Add(-time.Second))
		if due.After(now) || !sameDay(due, now) {
			continue
		}
		if s.submit(s.slots[i].Job) {
			s.fired[i] = now
			log.Info().Str("job", string(s.slots[i].Job.Kind)).Str("spec", s.slots[i].Spec).Msg("slot fired")
		}
	}
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
