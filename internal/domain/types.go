package domain

import "time"

// Outcome classifies one remote-service response. Derived purely from text.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomePartialSuccess
	OutcomeAuthError
	OutcomeRateLimited
	OutcomeServiceError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartialSuccess:
		return "partial_success"
	case OutcomeAuthError:
		return "auth_error"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeServiceError:
		return "service_error"
	default:
		return "unknown"
	}
}

// JobKind names one scheduled job.
type JobKind string

const (
	JobClaim        JobKind = "claim"
	JobTodayDigest  JobKind = "today_digest"
	JobExpiryCheck  JobKind = "expiry_check"
	JobMealReminder JobKind = "meal_reminder"
)

// Meal is the parameter of a MealReminder job.
type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealLunch     Meal = "lunch"
	MealTea       Meal = "tea"
	MealDinner    Meal = "dinner"
	MealLateNight Meal = "latenight"
)

// Job is one unit handed from the scheduler to the dispatch runtime.
type Job struct {
	Kind JobKind
	Meal Meal // set only for JobMealReminder
}

// Tenant is one enrolled user/credential pair. LastRun* fields are mutated
// only by the dispatch engine; AutoEnabled may be flipped off by the engine
// itself on a persistent auth failure.
type Tenant struct {
	ID             string
	Name           string
	Token          string
	AutoEnabled    bool
	ReportEnabled  bool
	LastRunDate    *time.Time
	LastRunSuccess *bool
	TotalSuccess   int
	TotalFailed    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RanToday reports whether the tenant already has a successful run recorded
// for the calendar day of now. This is the idempotency check: at most one
// effective run per (tenant, job, date).
func (t Tenant) RanToday(now time.Time) bool {
	if t.LastRunDate == nil || t.LastRunSuccess == nil || !*t.LastRunSuccess {
		return false
	}
	y1, m1, d1 := t.LastRunDate.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// CouponRecord is one entity extracted from free-form coupon text. Records
// are produced fresh on every extraction pass and never persisted.
type CouponRecord struct {
	Name       string
	Code       string
	ExpiryDate *time.Time
	DaysLeft   int // valid only when ExpiryDate is set
	Score      int // 0..100
	RawText    string
}

// HasExpiry reports whether the record carries a resolved expiry date.
func (c CouponRecord) HasExpiry() bool { return c.ExpiryDate != nil }
