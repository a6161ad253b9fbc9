// Package classify assigns an Outcome to free-form remote-service text.
//
// The rules are an ordered list and the order is a contract: count
// reconciliation must never run before the auth and service-health checks,
// or an outage message containing an incidental digit could be misread as a
// claim count. Likewise "失败: 0张" must never be read as a failure.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"couponflow/internal/domain"
)

var (
	serviceMarkers = []string{
		"麦当劳 MCP 服务当前出现异常",
		"服务响应超时",
		"服务暂时不可用",
		"系统维护",
	}
	rateLimitMarkers = []string{
		"麦当劳 MCP 接口返回 429",
		"接口返回 429",
		"请求过于频繁",
		"rate limited (429)",
		"status 429",
	}
	authMarkers = []string{
		"unauthorized",
		"forbidden",
		"invalid token",
		"token invalid",
		"error: invalid token.",
		"401",
		"token 无效",
		"token 已失效",
	}

	errorLineRe = regexp.MustCompile(`^\s*(?:[❌⚠️]|error\b|错误)`)

	successCountRe = regexp.MustCompile(`(?:成功|success)\s*[:：]?\s*(\d+)`)
	failureCountRe = regexp.MustCompile(`(?:失败|failed?)\s*[:：]?\s*(\d+)`)
)

// Classify inspects text and assigns an Outcome. First matching rule wins.
func Classify(text string) domain.Outcome {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.OutcomeUnknown
	}
	lower := strings.ToLower(trimmed)

	for _, m := range rateLimitMarkers {
		if strings.Contains(trimmed, m) {
			return domain.OutcomeRateLimited
		}
	}
	for _, m := range serviceMarkers {
		if strings.Contains(trimmed, m) {
			return domain.OutcomeServiceError
		}
	}
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return domain.OutcomeAuthError
		}
	}

	// A leading line opening with an error glyph or keyword.
	firstLine := trimmed
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		firstLine = trimmed[:i]
	}
	if errorLineRe.MatchString(strings.ToLower(firstLine)) {
		return domain.OutcomeServiceError
	}

	// Count reconciliation: success-count wins over an accompanying zero
	// failure-count; failures only matter when nothing succeeded.
	successN, hasSuccess := matchCount(successCountRe, lower)
	failureN, hasFailure := matchCount(failureCountRe, lower)
	if hasSuccess || hasFailure {
		switch {
		case successN > 0:
			return domain.OutcomeSuccess
		case failureN > 0:
			return domain.OutcomePartialSuccess
		case hasSuccess:
			// "成功: 0" with no failures: nothing claimed, nothing broken.
			return domain.OutcomePartialSuccess
		}
	}

	// The remote service is assumed healthy unless proven otherwise; a
	// stricter Unknown here would spuriously disable tenant automation.
	return domain.OutcomeSuccess
}

func matchCount(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsFailure reports whether the outcome should mark the tenant's run as
// failed (still enabled; only AuthError disables automation).
func IsFailure(o domain.Outcome) bool {
	switch o {
	case domain.OutcomeSuccess, domain.OutcomePartialSuccess:
		return false
	default:
		return true
	}
}
