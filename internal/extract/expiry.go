package extract

import (
	"regexp"
	"strconv"
	"time"

	"couponflow/internal/domain"
)

var (
	fullDateRe    = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	cnMonthDayRe  = regexp.MustCompile(`(\d{1,2})月\s*(\d{1,2})日`)
	validUntilRe  = regexp.MustCompile(`(?:有效期|有效期至|有效期到|有效期为|有效期截止)[^\d]*(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	validUntilMDRe = regexp.MustCompile(`(?:有效期|有效期至|有效期到|有效期为|有效期截止)[^\d]*(\d{1,2})[-/](\d{1,2})`)
)

// ParseExpiry extracts an expiry date from a line of coupon text. Four
// shapes are recognized: YYYY-MM-DD / YYYY/MM/DD, MM月DD日 (rolled to next
// year if already past), "有效期至" + full date, and "有效期至" + MM-DD with
// the same rollover. Returns nil when no date resolves.
func ParseExpiry(text string, now time.Time) *time.Time {
	if m := fullDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return &d
		}
	}
	if m := cnMonthDayRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDateRollover(m[1], m[2], now); ok {
			return &d
		}
	}
	if m := validUntilRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return &d
		}
	}
	if m := validUntilMDRe.FindStringSubmatch(text); m != nil {
		if d, ok := makeDateRollover(m[1], m[2], now); ok {
			return &d
		}
	}
	return nil
}

func makeDate(ys, ms, ds string) (time.Time, bool) {
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local)
	// Reject normalized overflow like Feb 30.
	if int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func makeDateRollover(ms, ds string, now time.Time) (time.Time, bool) {
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(now.Year(), time.Month(m), d, 0, 0, 0, 0, time.Local)
	if int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	if t.Before(startOfDay(now)) {
		t = time.Date(now.Year()+1, time.Month(m), d, 0, 0, 0, 0, time.Local)
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysLeft computes whole calendar days from now until the expiry date. The
// dates are re-anchored in UTC before subtracting so a 23h or 25h DST day
// still counts as one day.
func DaysLeft(expiry, now time.Time) int {
	ey, em, ed := expiry.Date()
	ny, nm, nd := now.Date()
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(e.Sub(n) / (24 * time.Hour))
}

// ScanExpiring filters records to those expiring within thresholdDays of
// now (inclusive, never negative). Records without a resolved expiry are
// excluded, not defaulted to expiring. All records are evaluated against the
// same now.
func ScanExpiring(records []domain.CouponRecord, thresholdDays int, now time.Time) []domain.CouponRecord {
	var out []domain.CouponRecord
	for _, r := range records {
		if !r.HasExpiry() {
			continue
		}
		days := DaysLeft(*r.ExpiryDate, now)
		if days >= 0 && days <= thresholdDays {
			r.DaysLeft = days
			out = append(out, r)
		}
	}
	return out
}
