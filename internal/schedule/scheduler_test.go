package schedule

import (
	"testing"
	"time"

	"couponflow/internal/domain"
)

type recorder struct {
	jobs   []domain.Job
	accept bool
}

func (r *recorder) submit(job domain.Job) bool {
	if r.accept {
		r.jobs = append(r.jobs, job)
	}
	return r.accept
}

func at(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.Local)
}

func mustNew(t *testing.T, table []Slot, rec *recorder) *Scheduler {
	t.Helper()
	s, err := New(table, rec.submit, 30*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New([]Slot{{Spec: "not a cron spec"}}, func(domain.Job) bool { return true }, 0)
	if err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestDefaultTableParses(t *testing.T) {
	rec := &recorder{accept: true}
	mustNew(t, DefaultTable(), rec)
}

func TestTickFiresOncePerDay(t *testing.T) {
	rec := &recorder{accept: true}
	s := mustNew(t, []Slot{{Spec: "30 10 * * *", Job: domain.Job{Kind: domain.JobClaim}}}, rec)

	s.Tick(at(10, 29))
	if len(rec.jobs) != 0 {
		t.Fatal("fired before the slot time")
	}

	s.Tick(at(10, 30))
	if len(rec.jobs) != 1 || rec.jobs[0].Kind != domain.JobClaim {
		t.Fatalf("jobs = %+v, want one claim", rec.jobs)
	}

	// Further ticks the same day are no-ops, however late.
	s.Tick(at(10, 31))
	s.Tick(at(23, 59))
	if len(rec.jobs) != 1 {
		t.Fatalf("slot re-fired: %d jobs", len(rec.jobs))
	}

	// The next day it fires again.
	s.Tick(at(10, 30).AddDate(0, 0, 1))
	if len(rec.jobs) != 2 {
		t.Fatalf("next-day fire missing: %d jobs", len(rec.jobs))
	}
}

func TestTickToleratesJitter(t *testing.T) {
	// A tick landing well after the slot time still fires it, e.g. after the
	// process slept or restarted mid-morning.
	rec := &recorder{accept: true}
	s := mustNew(t, []Slot{{Spec: "30 10 * * *", Job: domain.Job{Kind: domain.JobClaim}}}, rec)

	s.Tick(at(14, 7))
	if len(rec.jobs) != 1 {
		t.Fatalf("late tick did not fire: %d jobs", len(rec.jobs))
	}
}

func TestTickRetriesRejectedSubmit(t *testing.T) {
	rec := &recorder{accept: false}
	s := mustNew(t, []Slot{{Spec: "30 10 * * *", Job: domain.Job{Kind: domain.JobClaim}}}, rec)

	// Queue full: the slot must stay armed so the next tick tries again.
	s.Tick(at(10, 30))
	s.Tick(at(10, 31))
	if len(rec.jobs) != 0 {
		t.Fatalf("rejected submits recorded jobs: %+v", rec.jobs)
	}

	rec.accept = true
	s.Tick(at(10, 32))
	if len(rec.jobs) != 1 {
		t.Fatalf("slot did not fire once the queue drained: %d jobs", len(rec.jobs))
	}
	s.Tick(at(10, 33))
	if len(rec.jobs) != 1 {
		t.Fatal("slot fired twice after recovery")
	}
}

func TestTickIndependentSlots(t *testing.T) {
	rec := &recorder{accept: true}
	s := mustNew(t, []Slot{
		{Spec: "0 9 * * *", Job: domain.Job{Kind: domain.JobTodayDigest}},
		{Spec: "30 10 * * *", Job: domain.Job{Kind: domain.JobClaim}},
		{Spec: "0 20 * * *", Job: domain.Job{Kind: domain.JobExpiryCheck}},
	}, rec)

	s.Tick(at(9, 0))
	if len(rec.jobs) != 1 || rec.jobs[0].Kind != domain.JobTodayDigest {
		t.Fatalf("jobs = %+v, want only the digest", rec.jobs)
	}

	s.Tick(at(10, 30))
	if len(rec.jobs) != 2 || rec.jobs[1].Kind != domain.JobClaim {
		t.Fatalf("jobs = %+v, want digest then claim", rec.jobs)
	}

	// An evening tick catches only the slot not yet fired today.
	s.Tick(at(20, 0))
	if len(rec.jobs) != 3 || rec.jobs[2].Kind != domain.JobExpiryCheck {
		t.Fatalf("jobs = %+v, want digest, claim, expiry", rec.jobs)
	}
}

func TestTickMealSlotCarriesMeal(t *testing.T) {
	rec := &recorder{accept: true}
	s := mustNew(t, []Slot{
		{Spec: "30 11 * * *", Job: domain.Job{Kind: domain.JobMealReminder, Meal: domain.MealLunch}},
	}, rec)

	s.Tick(at(11, 30))
	if len(rec.jobs) != 1 || rec.jobs[0].Meal != domain.MealLunch {
		t.Fatalf("jobs = %+v, want one lunch reminder", rec.jobs)
	}
}
