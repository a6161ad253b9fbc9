// Package dispatch runs one scheduled job across all enrolled tenants with
// bounded concurrency, per-tenant idempotency and failure isolation.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"couponflow/internal/classify"
	"couponflow/internal/digest"
	"couponflow/internal/domain"
	"couponflow/internal/extract"
	"couponflow/internal/mcp"
	"couponflow/internal/notify"
	"couponflow/internal/publish"
	"couponflow/internal/report"
	"couponflow/internal/score"
	"couponflow/internal/store"
)

const (
	// At most this many tenant tasks in flight per run.
	maxInFlight = 5

	// Coupons expiring within this many days trigger a reminder.
	expiryThresholdDays = 3
)

// Terminal per-tenant states of one run.
type tenantState string

const (
	stateSkipped   tenantState = "skipped"
	stateCompleted tenantState = "completed"
	stateFailed    tenantState = "failed"
)

// RunStats summarizes one completed run.
type RunStats struct {
	Tenants   int
	Skipped   int
	Completed int
	Failed    int
}

type Engine struct {
	repo    store.Repository
	invoker mcp.Invoker
	pusher  notify.Notifier
	digests *digest.Builder
	now     func() time.Time
}

func NewEngine(repo store.Repository, invoker mcp.Invoker, pusher notify.Notifier) *Engine {
	return &Engine{
		repo:    repo,
		invoker: invoker,
		pusher:  pusher,
		digests: digest.NewBuilder(invoker, publish.NewTelegraph(repo)),
		now:     time.Now,
	}
}

// Run executes one job over every enrolled tenant. The tenant set is loaded
// once at entry; tenants added mid-run are not included. A single tenant
// failing, even by panicking at the tenant boundary, never aborts the run.
func (e *Engine) Run(ctx context.Context, job domain.Job) RunStats {
	tenants, err := e.repo.ListEnabled(ctx)
	if err != nil {
		log.Error().Err(err).Str("job", string(job.Kind)).Msg("list enabled tenants")
		return RunStats{}
	}

	log.Info().Str("job", string(job.Kind)).Int("tenants", len(tenants)).Msg("dispatch run started")

	states := make([]tenantState, len(tenants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for i, tenant := range tenants {
		i, tenant := i, tenant
		g.Go(func() error {
			states[i] = e.runTenant(gctx, job, tenant)
			return nil
		})
	}
	_ = g.Wait()

	stats := RunStats{Tenants: len(tenants)}
	for _, s := range states {
		switch s {
		case stateSkipped:
			stats.Skipped++
		case stateFailed:
			stats.Failed++
		default:
			stats.Completed++
		}
	}
	log.Info().Str("job", string(job.Kind)).
		Int("completed", stats.Completed).Int("skipped", stats.Skipped).Int("failed", stats.Failed).
		Msg("dispatch run complete")
	return stats
}

// runTenant drives one tenant through its strictly sequential lifecycle:
// idempotency check, remote call, classify, state update, notify.
func (e *Engine) runTenant(ctx context.Context, job domain.Job, tenant domain.Tenant) (state tenantState) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("tenant", tenant.ID).Msg("tenant task panicked")
			state = stateFailed
		}
	}()

	switch job.Kind {
	case domain.JobClaim:
		return e.runClaim(ctx, tenant)
	case domain.JobTodayDigest:
		return e.runDigest(ctx, tenant)
	case domain.JobExpiryCheck:
		return e.runExpiryCheck(ctx, tenant)
	case domain.JobMealReminder:
		return e.runMealReminder(ctx, tenant, job.Meal)
	default:
		log.Warn().Str("job", string(job.Kind)).Msg("unknown job kind")
		return stateFailed
	}
}

func (e *Engine) runClaim(ctx context.Context, tenant domain.Tenant) tenantState {
	now := e.now()
	if tenant.RanToday(now) {
		log.Debug().Str("tenant", tenant.ID).Msg("already claimed today, skipping")
		return stateSkipped
	}

	res, err := e.invoker.Call(ctx, tenant.Token, mcp.ToolClaim, nil)
	var text string
	if err != nil {
		text = mcp.FriendlyError(err)
	} else {
		text = res.Text()
	}

	outcome := classify.Classify(text)
	log.Info().Str("tenant", tenant.ID).Stringer("outcome", outcome).Msg("claim finished")

	if outcome == domain.OutcomeAuthError {
		// The credential is dead; stop retrying it every day until the
		// tenant re-binds.
		if err := e.repo.SetAutoEnabled(ctx, tenant.ID, false); err != nil {
			log.Error().Err(err).Str("tenant", tenant.ID).Msg("disable auto claim")
		}
		if err := e.repo.RecordRun(ctx, tenant.ID, now, false); err != nil {
			log.Error().Err(err).Str("tenant", tenant.ID).Msg("record run")
		}
		if tenant.ReportEnabled {
			e.pusher.Notify(ctx, tenant.ID, report.ClaimSummary(text, outcome))
		}
		return stateFailed
	}

	success := !classify.IsFailure(outcome)
	if err := e.repo.RecordRun(ctx, tenant.ID, now, success); err != nil {
		log.Error().Err(err).Str("tenant", tenant.ID).Msg("record run")
	}
	if tenant.ReportEnabled {
		e.pusher.Notify(ctx, tenant.ID, report.ClaimSummary(extract.CleanForChat(text), outcome))
	}
	if !success {
		return stateFailed
	}
	return stateCompleted
}

func (e *Engine) runDigest(ctx context.Context, tenant domain.Tenant) tenantState {
	if !tenant.ReportEnabled {
		return stateSkipped
	}
	text := e.digests.Build(ctx, tenant.Token, e.now())
	e.pusher.Notify(ctx, tenant.ID, text)
	return stateCompleted
}

func (e *Engine) runExpiryCheck(ctx context.Context, tenant domain.Tenant) tenantState {
	if !tenant.ReportEnabled {
		return stateSkipped
	}
	res, err := e.invoker.Call(ctx, tenant.Token, mcp.ToolMyCoupons, nil)
	if err != nil {
		log.Warn().Err(err).Str("tenant", tenant.ID).Msg("my-coupons fetch failed")
		return stateFailed
	}

	now := e.now()
	records := extract.Extract(res.Text(), now)
	expiring := extract.ScanExpiring(records, expiryThresholdDays, now)
	if len(expiring) == 0 {
		log.Debug().Str("tenant", tenant.ID).Msg("nothing expiring")
		return stateCompleted
	}
	for i := range expiring {
		expiring[i].Score = score.Score(expiring[i].Name)
	}
	e.pusher.Notify(ctx, tenant.ID, report.ExpiryReminder(expiring))
	return stateCompleted
}

func (e *Engine) runMealReminder(ctx context.Context, tenant domain.Tenant, meal domain.Meal) tenantState {
	if !tenant.ReportEnabled {
		return stateSkipped
	}
	tip := report.MealTip(meal)
	if tip == "" {
		return stateSkipped
	}
	e.pusher.Notify(ctx, tenant.ID, tip)
	return stateCompleted
}
