// Package score ranks coupons by deal value. Scoring is a pure function of
// the coupon name so ranking stays stable and testable offline.
package score

import (
	"sort"
	"strings"

	"couponflow/internal/domain"
)

const (
	base     = 50
	maxScore = 100
)

type rule struct {
	weight   int
	keywords []string
}

// Ordered only for readability; every matched class contributes its weight.
var rules = []rule{
	{50, []string{"免费", "0元"}},
	{40, []string{"买一送一", "1+1", "买1送1"}},
	{35, []string{"半价", "5折"}},
	{25, []string{"19.9", "29.9", "39.9"}},
	{15, []string{"9.9", "6.9", "4.9"}},
	{10, []string{"巨无霸", "麦辣鸡腿堡", "薯条", "汉堡"}},
	{5, []string{"限时", "今日"}},
}

// Score rates a coupon name on a 0..100 scale: base 50 plus a fixed weight
// per matched keyword class, capped at 100.
func Score(name string) int {
	s := base
	text := strings.ToLower(name)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				s += r.weight
				break
			}
		}
	}
	if s > maxScore {
		s = maxScore
	}
	return s
}

// Highlights scores the given records and returns the top n by value,
// highest first. Input order breaks ties, so the result is deterministic.
func Highlights(records []domain.CouponRecord, n int) []domain.CouponRecord {
	scored := make([]domain.CouponRecord, len(records))
	copy(scored, records)
	for i := range scored {
		scored[i].Score = Score(scored[i].Name)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if n < len(scored) {
		scored = scored[:n]
	}
	return scored
}
