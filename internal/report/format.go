// Package report renders user-facing notification text: claim summaries,
// expiry reminders and daily highlight digests.
package report

import (
	"fmt"
	"strings"
	"time"

	"couponflow/internal/domain"
	"couponflow/internal/extract"
)

// ClaimSummary wraps one claim result for the daily auto-claim notification.
// Successful claims get a random closing quote; auth failures carry a
// credential-refresh prompt instead.
func ClaimSummary(result string, outcome domain.Outcome) string {
	msg := "🔔 每日自动领券结果：\n\n" + result
	switch outcome {
	case domain.OutcomeAuthError:
		msg += "\n\n⚠️ 注意：你的 Token 可能已失效或无效，请重新发送新的 Token 进行绑定。"
	case domain.OutcomeSuccess, domain.OutcomePartialSuccess:
		msg += "\n\n🍟 " + RandomQuote()
	}
	return msg
}

// ExpiryReminder formats the expiring-coupon alert. Empty input yields "",
// which callers treat as nothing to send.
func ExpiryReminder(records []domain.CouponRecord) string {
	if len(records) == 0 {
		return ""
	}
	parts := []string{
		"⏰ 优惠券过期提醒",
		extract.Separator,
		"",
		fmt.Sprintf("你有 %d 张优惠券即将过期：", len(records)),
		"",
	}
	for _, r := range records {
		var urgency string
		switch r.DaysLeft {
		case 0:
			urgency = "🔴 今天过期！"
		case 1:
			urgency = "🟠 明天过期"
		default:
			urgency = fmt.Sprintf("🟡 %d天后过期", r.DaysLeft)
		}
		name := r.Name
		if name == "" {
			name = "未识别券名"
		}
		if r.HasExpiry() {
			parts = append(parts, fmt.Sprintf("%s %s(有效期至 %s)", urgency, name, r.ExpiryDate.Format("2006-01-02")))
		} else {
			parts = append(parts, urgency+" "+name)
		}
	}
	parts = append(parts, "", "💡 记得及时使用，不要浪费哦~")
	return strings.Join(parts, "\n")
}

// DailyHighlights formats the top-value coupon digest with a greeting for
// the current time of day.
func DailyHighlights(records []domain.CouponRecord, now time.Time) string {
	if len(records) == 0 {
		return ""
	}
	var greeting string
	switch h := now.Hour(); {
	case h >= 5 && h < 12:
		greeting = "🌅 早安！今日精选优惠新鲜出炉"
	case h >= 12 && h < 18:
		greeting = "☀️ 午间优惠精选"
	default:
		greeting = "🌙 晚间优惠精选"
	}
	parts := []string{
		greeting,
		extract.Separator,
		"",
		fmt.Sprintf("根据优惠力度，今天最值得领的 %d 张券：", len(records)),
		"",
	}
	medals := []string{"🥇", "🥈", "🥉", "🏅", "⭐"}
	for i, r := range records {
		medal := "📌"
		if i < len(medals) {
			medal = medals[i]
		}
		parts = append(parts, medal+" "+r.Name)
	}
	parts = append(parts, "", "💰 先到先得，记得及时领取！")
	return strings.Join(parts, "\n")
}

// MealTip returns the reminder line for one meal slot.
func MealTip(meal domain.Meal) string {
	switch meal {
	case domain.MealBreakfast:
		return "🍳 早餐时段：来个猪柳蛋堡唤醒灵魂吧"
	case domain.MealLunch:
		return "🍔 午餐时段：1+1随心配，最强穷鬼套餐"
	case domain.MealTea:
		return "☕ 下午茶时段：工作累了？点杯咖啡配个派"
	case domain.MealDinner:
		return "🍗 晚餐时段：今晚吃顿好的，对自己好一点"
	case domain.MealLateNight:
		return "🌙 夜宵时段：虽然会胖，但是炸鸡真香啊"
	default:
		return ""
	}
}

// MealForHour maps an hour of day to its meal slot, or "" between slots.
func MealForHour(h int) domain.Meal {
	switch {
	case h >= 5 && h < 10:
		return domain.MealBreakfast
	case h >= 11 && h < 14:
		return domain.MealLunch
	case h >= 14 && h < 17:
		return domain.MealTea
	case h >= 17 && h < 21:
		return domain.MealDinner
	case h >= 21 || h < 5:
		return domain.MealLateNight
	default:
		return ""
	}
}
