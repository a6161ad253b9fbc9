package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Separator used across all user-facing messages.
const Separator = "━━━━━━━━━━━━━━━━━━━"

var (
	mdReplacer = strings.NewReplacer("**", "", "__", "", "*", "", "`", "", `\`, "")

	imgRe         = regexp.MustCompile(`(?i)<img[^>]*src=["']([^"']+)["']`)
	claimMarkerRe = regexp.MustCompile(`(?i)\bcoupon\s*(?:id|code)\b|couponid|couponcode|券码|券号|兑换码`)
	summaryRe     = regexp.MustCompile(`\*\*[^*]+\*\*\s*[:：]\s*\S+`)
)

// CleanMarkdown strips markdown bold/italic/code markers and backslashes.
func CleanMarkdown(text string) string {
	return strings.TrimSpace(mdReplacer.Replace(text))
}

// StripToolBanner removes the tool-level markdown hint header and the
// current-time line the remote service prepends to every response.
func StripToolBanner(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	skipping := true
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if skipping {
			if stripped == "" {
				continue
			}
			if strings.Contains(stripped, "Client 支持 Markdown 渲染") {
				continue
			}
			if strings.HasPrefix(stripped, "### 当前时间") ||
				strings.HasPrefix(stripped, "当前时间：") ||
				strings.HasPrefix(stripped, "当前时间:") {
				continue
			}
			skipping = false
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// CleanForChat reformats raw tool output for chat display. Claim results get
// a header plus the list of claimed coupon names; error text gets a framed
// block; anything else falls back to a numbered coupon list or plain
// markdown-stripped lines. Structure parsing failing is not an error; the
// text degrades to its cleaned form.
func CleanForChat(text string) string {
	text = StripToolBanner(text)
	lines := strings.Split(text, "\n")

	if claimMarkerRe.MatchString(text) {
		return formatClaimResult(lines)
	}
	if containsAny(text, "失败", "错误", "Error", "error", "无可领取") {
		return formatErrorText(lines)
	}
	return formatCouponList(lines)
}

func formatClaimResult(lines []string) string {
	var headers, names []string
	inCoupons := false
	currentName := ""

	flush := func() {
		if currentName != "" {
			names = append(names, currentName)
			currentName = ""
		}
	}

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)

		if !inCoupons && !strings.Contains(lower, "couponid") && !strings.Contains(lower, "couponcode") && !strings.Contains(stripped, "图片") {
			if summaryRe.MatchString(stripped) || strings.Contains(stripped, "###") || strings.Contains(stripped, "领券结果") {
				headers = append(headers, CleanMarkdown(strings.TrimLeft(stripped, "#")))
				continue
			}
		}

		switch {
		case strings.HasPrefix(stripped, "- "), strings.HasPrefix(stripped, "* "), strings.HasPrefix(stripped, "+ "):
			inCoupons = true
			content := strings.TrimSpace(stripped[2:])
			lc := strings.ToLower(content)
			if strings.Contains(lc, "couponid") || strings.Contains(lc, "couponcode") || strings.Contains(content, "<img") {
				continue
			}
			if key, _, ok := splitLabel(content); ok {
				if isNameLabel(key) {
					flush()
					if _, v, _ := splitLabel(content); v != "" {
						currentName = CleanMarkdown(v)
					}
				}
				// other labeled fields (图片, 状态, ...) are noise here
				continue
			}
			// Bare bullet: a new coupon name.
			flush()
			currentName = CleanMarkdown(content)
		case stripped == "" || strings.Contains(stripped, "---"):
			flush()
		}
	}
	flush()

	var out []string
	if len(headers) > 0 {
		out = append(out, "🎉 领券结果", "")
		out = append(out, headers...)
		out = append(out, "")
	}
	if len(names) > 0 {
		out = append(out, Separator, "", "✅ 成功领取的优惠券：")
		for _, n := range names {
			out = append(out, "• "+n)
		}
		out = append(out, "")
	}
	if len(out) > 0 {
		return strings.TrimSpace(strings.Join(out, "\n"))
	}

	// Structure parsing found nothing; strip the noisy technical fields.
	var fallback []string
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		lower := strings.ToLower(stripped)
		if strings.Contains(lower, "couponid") || strings.Contains(lower, "couponcode") {
			continue
		}
		if strings.Contains(lower, "<img") || strings.Contains(stripped, "图片") {
			if m := imgRe.FindStringSubmatch(stripped); m != nil {
				fallback = append(fallback, "图片: "+m[1])
			}
			continue
		}
		fallback = append(fallback, CleanMarkdown(strings.TrimLeft(stripped, "#")))
	}
	return strings.TrimSpace(strings.Join(fallback, "\n"))
}

func formatErrorText(lines []string) string {
	var out []string
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if strings.HasPrefix(stripped, "#") {
			stripped = strings.TrimSpace(strings.TrimLeft(stripped, "#"))
			if containsAny(stripped, "失败", "错误", "Error") {
				stripped = "❌ " + stripped
			}
		}
		out = append(out, stripped)
	}
	if len(out) == 0 {
		return ""
	}
	return strings.TrimSpace(Separator + "\n" + strings.Join(out, "\n") + "\n" + Separator)
}

func formatCouponList(lines []string) string {
	var prefix, titles []string
	isList := false
	currentTitle := ""

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if strings.Contains(stripped, "优惠券列表") || strings.Contains(stripped, "优惠券标题") {
			isList = true
		}
		if !isList {
			prefix = append(prefix, CleanMarkdown(stripped))
			continue
		}
		switch {
		case strings.HasPrefix(stripped, "- 优惠券标题："), strings.HasPrefix(stripped, "优惠券标题："), strings.HasPrefix(stripped, "## "):
			if currentTitle != "" {
				titles = append(titles, currentTitle)
			}
			if strings.HasPrefix(stripped, "## ") {
				currentTitle = CleanMarkdown(strings.TrimLeft(stripped, "#"))
			} else {
				_, v, _ := splitLabel(stripped)
				currentTitle = CleanMarkdown(v)
			}
		case strings.Contains(stripped, "优惠券图片"), strings.HasPrefix(stripped, "http"):
			// noise
		}
	}
	if currentTitle != "" {
		titles = append(titles, currentTitle)
	}

	if len(titles) > 0 {
		var b strings.Builder
		if len(prefix) > 0 {
			b.WriteString(strings.Join(prefix, "\n"))
			b.WriteString("\n\n")
		}
		for i, t := range titles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t)
		}
		return strings.TrimSpace(b.String())
	}

	var cleaned []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "http") {
			continue
		}
		cleaned = append(cleaned, CleanMarkdown(line))
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// splitLabel splits a "key: value" line on the first ASCII or fullwidth colon.
func splitLabel(s string) (key, value string, ok bool) {
	i := strings.IndexAny(s, ":：")
	if i < 0 {
		return "", "", false
	}
	sep := 1
	if s[i] != ':' {
		sep = len("：")
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+sep:]), true
}

func isNameLabel(key string) bool {
	switch key {
	case "优惠券标题", "标题", "优惠券名称", "优惠名称", "名称", "券名", "商品名称":
		return true
	}
	lk := strings.ToLower(key)
	return lk == "title" || lk == "name"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
