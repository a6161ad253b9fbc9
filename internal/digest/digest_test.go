package digest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"couponflow/internal/mcp"
	"couponflow/internal/publish"
)

type stubInvoker struct {
	mu     sync.Mutex
	byTool map[string]mcp.Result
	errs   map[string]error
	args   map[string]map[string]any
}

func (s *stubInvoker) Call(_ context.Context, _, tool string, args map[string]any) (mcp.Result, error) {
	s.mu.Lock()
	if s.args != nil {
		s.args[tool] = args
	}
	s.mu.Unlock()
	if err := s.errs[tool]; err != nil {
		return mcp.Result{}, err
	}
	return s.byTool[tool], nil
}

func text(s string) mcp.Result {
	return mcp.Result{Content: []mcp.ContentBlock{{Type: "text", Text: s}}}
}

func TestBuildHappyPath(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
	inv := &stubInvoker{
		byTool: map[string]mcp.Result{
			mcp.ToolCampaignCalendar: text("今日活动\n会员日全场优惠"),
			mcp.ToolAvailableCoupons: text("- 免费薯条\n- 半价汉堡"),
		},
		args: make(map[string]map[string]any),
	}
	got := NewBuilder(inv, nil).Build(context.Background(), "tok", now)

	for _, want := range []string{
		"📅 2026-03-02",
		"【今天的活动】",
		"会员日全场优惠",
		"【你当前可领的优惠券】",
		"免费薯条",
		"✨ 发现免费羊毛！赶紧看看列表！",
		"💰 半价优惠！四舍五入不要钱",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in digest:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "早餐时段") {
		t.Errorf("9am digest should carry the breakfast tip:\n%s", got)
	}

	args := inv.args[mcp.ToolCampaignCalendar]
	if args == nil || args["specifiedDate"] != "2026-03-02" {
		t.Errorf("calendar args = %v, want specifiedDate 2026-03-02", args)
	}
}

func TestBuildOneSideFailing(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
	inv := &stubInvoker{
		byTool: map[string]mcp.Result{
			mcp.ToolAvailableCoupons: text("- 半价汉堡"),
		},
		errs: map[string]error{mcp.ToolCampaignCalendar: mcp.ErrService},
	}
	got := NewBuilder(inv, nil).Build(context.Background(), "tok", now)

	if !strings.Contains(got, "查询活动信息时出现问题：") {
		t.Errorf("calendar section not degraded:\n%s", got)
	}
	if !strings.Contains(got, "半价汉堡") {
		t.Errorf("healthy coupon section dropped:\n%s", got)
	}
	if strings.Contains(got, "当前暂时无法获取活动或优惠券的正常信息") {
		t.Errorf("one-sided failure must not drop the closing quote:\n%s", got)
	}
}

func TestBuildBothSidesFailing(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
	inv := &stubInvoker{
		errs: map[string]error{
			mcp.ToolCampaignCalendar: mcp.ErrService,
			mcp.ToolAvailableCoupons: mcp.ErrTimeout,
		},
	}
	got := NewBuilder(inv, nil).Build(context.Background(), "tok", now)

	if !strings.Contains(got, "当前暂时无法获取活动或优惠券的正常信息") {
		t.Errorf("missing try-again note:\n%s", got)
	}
	if strings.Contains(got, "🍟") {
		t.Errorf("both sides failed, no quote expected:\n%s", got)
	}
}

func TestBuildRanksTopCoupons(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
	available := strings.Join([]string{
		"可领优惠券列表",
		"- 优惠券标题：普通券",
		"- 优惠券标题：免费薯条",
		"- 优惠券标题：半价汉堡",
		"- 优惠券标题：买一送一麦旋风",
	}, "\n")
	inv := &stubInvoker{
		byTool: map[string]mcp.Result{
			mcp.ToolCampaignCalendar: text("今日活动\n会员日"),
			mcp.ToolAvailableCoupons: text(available),
		},
	}
	got := NewBuilder(inv, nil).Build(context.Background(), "tok", now)

	if !strings.Contains(got, "🥇 免费薯条") {
		t.Errorf("top coupon not ranked first:\n%s", got)
	}
	if !strings.Contains(got, "🥈 半价汉堡") {
		t.Errorf("runner-up missing:\n%s", got)
	}
	if !strings.Contains(got, "最值得领的 3 张券") {
		t.Errorf("ranking capped line missing:\n%s", got)
	}
	if strings.Contains(got, "🏅") {
		t.Errorf("more than three coupons ranked:\n%s", got)
	}
}

type stubPublisher struct {
	url   string
	calls int
	title string
}

func (s *stubPublisher) CreatePage(_ context.Context, title string, _ []publish.Node) string {
	s.calls++
	s.title = title
	return s.url
}

func TestBuildHostsLongCalendar(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
	long := "今日活动\n" + strings.Repeat("第1条：会员日全场优惠，详情见门店海报\n", 60)
	inv := &stubInvoker{
		byTool: map[string]mcp.Result{
			mcp.ToolCampaignCalendar: text(long),
			mcp.ToolAvailableCoupons: text("- 半价汉堡"),
		},
	}
	pages := &stubPublisher{url: "https://telegra.ph/cal-1"}
	got := NewBuilder(inv, pages).Build(context.Background(), "tok", now)

	if pages.calls != 1 {
		t.Fatalf("CreatePage called %d times, want 1", pages.calls)
	}
	if !strings.Contains(pages.title, "2026-03-02") {
		t.Errorf("page title = %q", pages.title)
	}
	if !strings.Contains(got, "📖 完整活动日历：https://telegra.ph/cal-1") {
		t.Errorf("digest missing the page link:\n%s", got)
	}
	if strings.Count(got, "第1条") > 10 {
		t.Errorf("full calendar still inlined:\n%s", got)
	}
}

func TestBuildShortCalendarNotHosted(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
	inv := &stubInvoker{
		byTool: map[string]mcp.Result{
			mcp.ToolCampaignCalendar: text("今日活动\n会员日"),
			mcp.ToolAvailableCoupons: text("- 半价汉堡"),
		},
	}
	pages := &stubPublisher{url: "https://telegra.ph/cal-1"}
	got := NewBuilder(inv, pages).Build(context.Background(), "tok", now)

	if pages.calls != 0 {
		t.Fatalf("short calendar hosted anyway (%d calls)", pages.calls)
	}
	if !strings.Contains(got, "会员日") {
		t.Errorf("calendar lost:\n%s", got)
	}
}

func TestBuildHostingFailureKeepsFullText(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.Local)
	long := "今日活动\n" + strings.Repeat("第1条：会员日全场优惠，详情见门店海报\n", 60)
	inv := &stubInvoker{
		byTool: map[string]mcp.Result{
			mcp.ToolCampaignCalendar: text(long),
			mcp.ToolAvailableCoupons: text("- 半价汉堡"),
		},
	}
	got := NewBuilder(inv, &stubPublisher{url: ""}).Build(context.Background(), "tok", now)

	if strings.Contains(got, "📖 完整活动日历") {
		t.Errorf("link emitted without a page:\n%s", got)
	}
	if strings.Count(got, "会员日全场优惠") < 50 {
		t.Errorf("full calendar dropped on hosting failure:\n%s", got)
	}
}

func TestCleanCalendarLeadsWithToday(t *testing.T) {
	in := "今天是2026年3月2日\n昨日活动\n- 旧活动\n今日活动\n- 会员日"
	got := cleanCalendar(in)

	if strings.Contains(got, "今天是") {
		t.Errorf("date header kept: %q", got)
	}
	if strings.Contains(got, "昨日活动") || strings.Contains(got, "旧活动") {
		t.Errorf("yesterday section kept: %q", got)
	}
	if !strings.Contains(got, "今日活动") || !strings.Contains(got, "会员日") {
		t.Errorf("today section lost: %q", got)
	}
}

func TestCleanCalendarStripsMarkdown(t *testing.T) {
	got := cleanCalendar("**会员日** 半价\\优惠")
	if strings.Contains(got, "**") || strings.Contains(got, `\`) {
		t.Errorf("markdown residue: %q", got)
	}
}

func TestHighlightsOnErrorText(t *testing.T) {
	if hl := highlights(mcp.FriendlyError(mcp.ErrService)); hl != nil {
		t.Errorf("error text produced highlights: %v", hl)
	}
}
