// Package extract converts free-form coupon text into structured
// CouponRecord values. The source text drifts between formats (labeled
// fields, markdown headings, bare bullets, bilingual labels), so extraction
// is heuristic and tolerant: a line that parses into nothing is skipped, and
// text with no entity-shaped lines at all yields an empty list, never an
// error.
package extract

import (
	"regexp"
	"strings"
	"time"

	"couponflow/internal/domain"
)

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:优惠券标题|优惠券名称|优惠名称|标题|名称|券名|商品名称|title|name)\s*[:：]\s*(.+)`),
	}
	detailPattern = regexp.MustCompile(`(?:内容|描述|适用|商品|套餐|说明)\s*[:：]\s*(.+)`)
	codePattern   = regexp.MustCompile(`(?i)(?:couponCode|couponId|券码|券号|兑换码)\s*[:：]\s*([A-Za-z0-9\-]{3,})`)

	metaLabels = []string{
		"有效期", "状态", "券码", "券号", "使用规则",
		"图片", "链接", "价格", "用券价格", "coupon", "code",
	}
	detailLabels = []string{"内容", "描述", "适用", "商品", "套餐", "说明"}
	genericNames = map[string]bool{
		"优惠": true, "优惠券": true, "优惠券标题": true, "优惠券名称": true, "券": true,
	}

	priceOnlyRe   = regexp.MustCompile(`^(?:优惠|特惠)?¥\d+(?:\.\d+)?$`)
	priceLikeRe   = regexp.MustCompile(`¥\s*\d+(?:\.\d+)?`)
	expiryParenRe = regexp.MustCompile(`[\(（][^)）]*有效[^)）]*[\)）]`)
	expirySplitRe = regexp.MustCompile(`有效期.*`)
	bulletRe      = regexp.MustCompile(`^[\s\-•\*]+`)
	spaceRe       = regexp.MustCompile(`\s+`)
	leadColonRe   = regexp.MustCompile(`^([^:：]{2,80})\s*[:：]`)
	detailTrimRe  = regexp.MustCompile(`(?:有效期|有效至|\(|（).*`)
)

// Extract walks text line by line and emits coupon records in source order.
// All expiry math uses the single now passed in, so sibling records are
// never evaluated against different instants.
func Extract(text string, now time.Time) []domain.CouponRecord {
	var records []domain.CouponRecord
	var cur *domain.CouponRecord

	flush := func() {
		if cur != nil {
			records = append(records, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}

		if name := nameFromLine(line); name != "" {
			if cur != nil {
				// A generic placeholder name followed by a real one is the
				// same coupon, not two entities.
				if cur.HasExpiry() && isGenericName(cur.Name) && !isGenericName(name) {
					cur.Name = name
					cur.RawText = line
				} else {
					flush()
				}
			}
			if cur == nil {
				cur = &domain.CouponRecord{Name: name, RawText: line}
			}
		}

		if cur != nil {
			if m := codePattern.FindStringSubmatch(line); m != nil {
				cur.Code = m[1]
			}
			if isGenericName(cur.Name) {
				if detail := detailFromLine(line); detail != "" && !strings.Contains(cur.Name, detail) {
					cur.Name = strings.TrimSpace(cur.Name + " " + detail)
				}
			}
		}

		if expiry := ParseExpiry(line, now); expiry != nil {
			if cur == nil {
				cur = &domain.CouponRecord{RawText: line}
			}
			cur.ExpiryDate = expiry
			cur.DaysLeft = DaysLeft(*expiry, now)
		}
	}
	flush()

	return records
}

// nameFromLine returns the coupon name carried by line, or "" if the line is
// not a name line. Labeled fields win; then price-bearing short lines,
// markdown headings, leading "key:" shapes, and finally bare bullets without
// a colon. Metadata labels are never names, even under the bullet fallback.
func nameFromLine(line string) string {
	clean := CleanMarkdown(line)
	priceLike := priceLikeRe.MatchString(clean)

	for _, pat := range namePatterns {
		if m := pat.FindStringSubmatch(clean); m != nil {
			if name := normalizeName(m[1]); name != "" && !isMetadataLabel(name) {
				return name
			}
		}
	}

	stripped := bulletRe.ReplaceAllString(clean, "")
	// A bare URL is never a name; its scheme would otherwise satisfy the
	// leading "key:" shape below.
	if strings.HasPrefix(stripped, "http://") || strings.HasPrefix(stripped, "https://") {
		return ""
	}
	if priceLike && len([]rune(stripped)) <= 80 && !isMetadataLabel(stripped) {
		s := strings.TrimSpace(expiryParenRe.ReplaceAllString(stripped, ""))
		if s != "" {
			return normalizeName(s)
		}
	}
	if strings.HasPrefix(stripped, "##") {
		if name := normalizeName(strings.TrimLeft(stripped, "#")); name != "" && !isMetadataLabel(name) {
			return name
		}
	}
	if m := leadColonRe.FindStringSubmatch(stripped); m != nil {
		if name := normalizeName(m[1]); name != "" && !isMetadataLabel(name) && !isDetailLabel(name) {
			return name
		}
	}
	// Bullet fallback: a bulleted line with no colon at all. Metadata-label
	// detection takes precedence over this rule.
	if strings.HasPrefix(strings.TrimSpace(line), "-") ||
		strings.HasPrefix(strings.TrimSpace(line), "*") ||
		strings.HasPrefix(strings.TrimSpace(line), "•") {
		if stripped != "" && len([]rune(stripped)) <= 80 &&
			!strings.ContainsAny(stripped, ":：") &&
			!isMetadataLabel(stripped) &&
			!fullDateRe.MatchString(stripped) {
			return stripped
		}
	}
	return ""
}

func normalizeName(name string) string {
	name = CleanMarkdown(name)
	name = strings.TrimSpace(expiryParenRe.ReplaceAllString(name, ""))
	if strings.Contains(name, "有效期") {
		name = strings.TrimSpace(expirySplitRe.ReplaceAllString(name, ""))
	}
	name = bulletRe.ReplaceAllString(name, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(name, " "))
}

func isMetadataLabel(text string) bool {
	if text == "" {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range metaLabels {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func isDetailLabel(text string) bool {
	for _, kw := range detailLabels {
		if text == kw {
			return true
		}
	}
	return false
}

func isGenericName(name string) bool {
	if name == "" {
		return true
	}
	if genericNames[name] {
		return true
	}
	compact := spaceRe.ReplaceAllString(name, "")
	if priceOnlyRe.MatchString(compact) {
		return true
	}
	lower := strings.ToLower(name)
	return lower == "coupon" || lower == "coupons"
}

// detailFromLine pulls a descriptive value out of a labeled line, used to
// enrich a generic placeholder name. Returns "" for non-descriptive lines.
func detailFromLine(line string) string {
	clean := CleanMarkdown(line)
	if m := detailPattern.FindStringSubmatch(clean); m != nil {
		if d := trimDetail(m[1]); d != "" {
			return d
		}
	}
	// Generic "key: value" fallback, but never from a metadata field like
	// 有效期 or 券码: dates and codes must not leak into names.
	if k, v, ok := splitLabel(clean); ok {
		k = bulletRe.ReplaceAllString(k, "")
		if !isMetadataLabel(k) {
			return trimDetail(v)
		}
	}
	return ""
}

func trimDetail(detail string) string {
	detail = strings.TrimSpace(detailTrimRe.ReplaceAllString(detail, ""))
	if len([]rune(detail)) < 2 {
		return ""
	}
	return detail
}
