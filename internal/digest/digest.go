// Package digest composes the daily recommendation message from the
// campaign calendar and the list of claimable coupons.
package digest

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"couponflow/internal/classify"
	"couponflow/internal/extract"
	"couponflow/internal/mcp"
	"couponflow/internal/publish"
	"couponflow/internal/report"
	"couponflow/internal/score"
)

const (
	// Composite budget for the two sub-calls together.
	fetchTimeout = 40 * time.Second

	// Calendars longer than this are hosted as a page, with the digest
	// carrying the link instead of the full text.
	longCalendarRunes = 900

	// At most this many top-value coupons are called out by name.
	maxHighlights = 3
)

type Builder struct {
	invoker mcp.Invoker
	pages   publish.Publisher // nil disables page hosting
}

func NewBuilder(invoker mcp.Invoker, pages publish.Publisher) *Builder {
	return &Builder{invoker: invoker, pages: pages}
}

// Build fetches the calendar and the claimable-coupon list concurrently and
// renders the digest. Either sub-call failing degrades that section to its
// friendly error text; only both failing drops the closing quote in favor of
// a try-again note.
func (b *Builder) Build(ctx context.Context, token string, now time.Time) string {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var calendarText, availableText, rawAvailable string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := b.invoker.Call(gctx, token, mcp.ToolCampaignCalendar,
			map[string]any{"specifiedDate": now.Format("2006-01-02")})
		if err != nil {
			calendarText = mcp.FriendlyError(err)
		} else {
			calendarText = res.Text()
		}
		return nil
	})
	g.Go(func() error {
		res, err := b.invoker.Call(gctx, token, mcp.ToolAvailableCoupons, nil)
		if err != nil {
			availableText = mcp.FriendlyError(err)
		} else {
			rawAvailable = res.Text()
			availableText = extract.CleanForChat(rawAvailable)
		}
		return nil
	})
	_ = g.Wait() // sub-call failures are carried in the section text

	lines := []string{"📅 " + now.Format("2006-01-02")}

	if hl := highlights(availableText); len(hl) > 0 {
		lines = append(lines, "")
		lines = append(lines, hl...)
	}

	if records := extract.Extract(rawAvailable, now); len(records) > 0 {
		if text := report.DailyHighlights(score.Highlights(records, maxHighlights), now); text != "" {
			lines = append(lines, "", text)
		}
	}

	if meal := report.MealForHour(now.Hour()); meal != "" {
		if tip := report.MealTip(meal); tip != "" {
			lines = append(lines, "", tip)
		}
	}

	lines = append(lines, "", extract.Separator, "", "【今天的活动】")
	calendarBad := appendSection(&lines, calendarText, "暂未查询到当日活动信息。", "查询活动信息时出现问题：", func(s string) string {
		return b.condenseCalendar(ctx, now, cleanCalendar(s))
	})

	lines = append(lines, "", extract.Separator, "", "【你当前可领的优惠券】")
	availableBad := appendSection(&lines, availableText, "暂未查询到可领券。", "查询可领优惠券时出现问题：", nil)

	lines = append(lines, "")
	if calendarBad && availableBad {
		lines = append(lines, "当前暂时无法获取活动或优惠券的正常信息，可能是 MCP 服务短暂异常或网络问题，可以稍后再试一次。")
	} else {
		lines = append(lines, "🍟 "+report.RandomQuote())
	}
	return strings.Join(lines, "\n")
}

// appendSection appends one digest section and reports whether the section
// is in an error state.
func appendSection(lines *[]string, text, emptyMsg, errMsg string, clean func(string) string) bool {
	if strings.TrimSpace(text) == "" {
		*lines = append(*lines, emptyMsg)
		return true
	}
	if classify.IsFailure(classify.Classify(text)) {
		*lines = append(*lines, errMsg, strings.TrimSpace(text))
		return true
	}
	if clean != nil {
		text = clean(text)
	}
	*lines = append(*lines, strings.TrimSpace(text))
	return false
}

// condenseCalendar hosts an oversized calendar as a page and keeps only its
// opening lines plus the link in the digest. Hosting failing (or being
// disabled) keeps the full text.
func (b *Builder) condenseCalendar(ctx context.Context, now time.Time, text string) string {
	if b.pages == nil || len([]rune(text)) <= longCalendarRunes {
		return text
	}
	var nodes []publish.Node
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nodes = append(nodes, publish.Element("p", nil, line))
	}
	url := b.pages.CreatePage(ctx, "麦当劳活动日历 "+now.Format("2006-01-02"), nodes)
	if url == "" {
		return text
	}
	head := strings.Split(text, "\n")
	if len(head) > 8 {
		head = head[:8]
	}
	return strings.TrimSpace(strings.Join(head, "\n")) + "\n\n📖 完整活动日历：" + url
}

func cleanCalendar(text string) string {
	text = stripTodayHeader(text)
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, `\`, "")
	text = reorderSections(text)
	return removeYesterdaySection(text)
}

func highlights(availableText string) []string {
	if availableText == "" || classify.IsFailure(classify.Classify(availableText)) {
		return nil
	}
	var out []string
	if containsAny(availableText, "免费", "0元") {
		out = append(out, "✨ 发现免费羊毛！赶紧看看列表！")
	}
	if containsAny(availableText, "买一送一", "1+1") {
		out = append(out, "🔥 有买一送一活动！适合找人拼单")
	}
	if strings.Contains(availableText, "半价") {
		out = append(out, "💰 半价优惠！四舍五入不要钱")
	}
	return out
}

// stripTodayHeader drops the leading "今天是..." line the calendar tool
// prepends.
func stripTodayHeader(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	first := true
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if first {
			if stripped == "" {
				continue
			}
			first = false
			if strings.Contains(stripped, "今天是") || strings.Contains(stripped, "今日") {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isSectionHeader(line string) bool {
	l := strings.TrimSpace(line)
	if l == "" {
		return false
	}
	if !containsAny(l, "昨日", "昨天", "今日", "今天", "明日", "明天") {
		return false
	}
	return strings.HasPrefix(l, "#") || strings.HasPrefix(l, "【") ||
		strings.HasPrefix(l, "昨日") || strings.HasPrefix(l, "昨天") ||
		strings.HasPrefix(l, "今日") || strings.HasPrefix(l, "今天") ||
		strings.HasPrefix(l, "明日") || strings.HasPrefix(l, "明天")
}

// reorderSections swaps the 昨日 and 今日 sections when yesterday's comes
// first, so the digest always leads with today.
func reorderSections(text string) string {
	lines := strings.Split(text, "\n")
	var prefix []string
	var sections [][]string
	var current []string

	for _, line := range lines {
		if isSectionHeader(line) {
			if current != nil {
				sections = append(sections, current)
			}
			current = []string{line}
		} else if current == nil {
			prefix = append(prefix, line)
		} else {
			current = append(current, line)
		}
	}
	if current != nil {
		sections = append(sections, current)
	}
	if len(sections) == 0 {
		return text
	}

	idxToday, idxYesterday := -1, -1
	for i, sec := range sections {
		header := strings.TrimSpace(sec[0])
		if idxToday < 0 && containsAny(header, "今日", "今天") {
			idxToday = i
		}
		if idxYesterday < 0 && strings.Contains(header, "昨日") {
			idxYesterday = i
		}
	}
	if idxToday < 0 || idxYesterday < 0 || idxYesterday > idxToday {
		return text
	}

	sections[idxToday], sections[idxYesterday] = sections[idxYesterday], sections[idxToday]
	merged := append([]string{}, prefix...)
	for _, sec := range sections {
		merged = append(merged, sec...)
	}
	return strings.Join(merged, "\n")
}

func removeYesterdaySection(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	skipping := false
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if isSectionHeader(line) {
			skipping = strings.Contains(stripped, "昨日") || strings.Contains(stripped, "昨天")
			if skipping {
				continue
			}
		}
		if skipping {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
