package extract

import (
	"strings"
	"testing"
)

func TestCleanMarkdown(t *testing.T) {
	cases := map[string]string{
		"**免费薯条**":   "免费薯条",
		"*半价* `汉堡`":  "半价 汉堡",
		`买一\送一`:      "买一送一",
		"  plain  ": "plain",
	}
	for in, want := range cases {
		if got := CleanMarkdown(in); got != want {
			t.Errorf("CleanMarkdown(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripToolBanner(t *testing.T) {
	in := "\n如果你的 Client 支持 Markdown 渲染，效果更佳\n### 当前时间：2026-03-02 10:30\n领券结果\n成功: 3张"
	got := StripToolBanner(in)
	if strings.Contains(got, "Markdown 渲染") || strings.Contains(got, "当前时间") {
		t.Errorf("banner kept: %q", got)
	}
	if !strings.Contains(got, "领券结果") || !strings.Contains(got, "成功: 3张") {
		t.Errorf("payload lost: %q", got)
	}
}

func TestStripToolBannerKeepsLaterLines(t *testing.T) {
	// The time line only counts as banner at the top of the message.
	in := "领券结果\n当前时间：2026-03-02"
	if got := StripToolBanner(in); !strings.Contains(got, "当前时间") {
		t.Errorf("mid-message line dropped: %q", got)
	}
}

func TestCleanForChatClaimResult(t *testing.T) {
	in := strings.Join([]string{
		"### 领券结果",
		"**成功**: 2张",
		"",
		"- 免费薯条",
		"- couponId: 123456",
		"- 半价汉堡",
		"- couponCode: ABCDEF",
	}, "\n")

	got := CleanForChat(in)
	if !strings.Contains(got, "🎉 领券结果") {
		t.Errorf("header missing:\n%s", got)
	}
	if !strings.Contains(got, "• 免费薯条") || !strings.Contains(got, "• 半价汉堡") {
		t.Errorf("claimed names missing:\n%s", got)
	}
	if strings.Contains(got, "couponId") || strings.Contains(got, "123456") {
		t.Errorf("technical fields leaked:\n%s", got)
	}
}

func TestCleanForChatLabeledClaimNames(t *testing.T) {
	in := strings.Join([]string{
		"领券结果",
		"- 优惠券标题：免费咖啡",
		"- 状态：已领取",
		"- couponId: 99",
	}, "\n")

	got := CleanForChat(in)
	if !strings.Contains(got, "• 免费咖啡") {
		t.Errorf("labeled name missing:\n%s", got)
	}
	if strings.Contains(got, "已领取") {
		t.Errorf("status field leaked:\n%s", got)
	}
}

func TestCleanForChatErrorText(t *testing.T) {
	got := CleanForChat("## 领取失败\n今日已领取过，请明天再来")
	if !strings.Contains(got, "❌ 领取失败") {
		t.Errorf("error heading not marked:\n%s", got)
	}
	if !strings.Contains(got, "今日已领取过") {
		t.Errorf("detail lost:\n%s", got)
	}
	if !strings.HasPrefix(got, Separator) || !strings.HasSuffix(got, Separator) {
		t.Errorf("error block not framed:\n%s", got)
	}
}

func TestCleanForChatCouponList(t *testing.T) {
	in := strings.Join([]string{
		"可领优惠券列表",
		"- 优惠券标题：免费薯条",
		"- 优惠券图片：http://example.com/a.png",
		"- 优惠券标题：半价汉堡",
		"http://example.com/b.png",
	}, "\n")

	got := CleanForChat(in)
	if !strings.Contains(got, "1. 免费薯条") || !strings.Contains(got, "2. 半价汉堡") {
		t.Errorf("numbered list missing:\n%s", got)
	}
	if strings.Contains(got, "http://") {
		t.Errorf("image noise kept:\n%s", got)
	}
}

func TestCleanForChatPassThrough(t *testing.T) {
	got := CleanForChat("**今日活动**\n全场会员半价日")
	if !strings.Contains(got, "今日活动") || !strings.Contains(got, "全场会员半价日") {
		t.Errorf("plain text mangled:\n%s", got)
	}
	if strings.Contains(got, "**") {
		t.Errorf("markdown kept:\n%s", got)
	}
}

func TestSplitLabel(t *testing.T) {
	cases := []struct {
		in         string
		key, value string
		ok         bool
	}{
		{"优惠券标题：免费薯条", "优惠券标题", "免费薯条", true},
		{"name: fries", "name", "fries", true},
		{"no separator here", "", "", false},
	}
	for _, tc := range cases {
		k, v, ok := splitLabel(tc.in)
		if k != tc.key || v != tc.value || ok != tc.ok {
			t.Errorf("splitLabel(%q) = %q, %q, %v", tc.in, k, v, ok)
		}
	}
}
