package publish

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"couponflow/internal/store"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

type kvOnlyRepo struct {
	store.Repository
	kv map[string]string
}

func newKVRepo() *kvOnlyRepo { return &kvOnlyRepo{kv: make(map[string]string)} }

func (r *kvOnlyRepo) GetValue(_ context.Context, key string) (string, error) {
	return r.kv[key], nil
}

func (r *kvOnlyRepo) SetValue(_ context.Context, key, value string) error {
	r.kv[key] = value
	return nil
}

func newTestTelegraph(repo store.Repository, rt rtFunc) *Telegraph {
	tg := NewTelegraph(repo)
	tg.hc = &http.Client{Transport: rt}
	return tg
}

func TestCreatePageCreatesAndCachesAccount(t *testing.T) {
	repo := newKVRepo()
	var paths []string
	tg := newTestTelegraph(repo, func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/createAccount":
			return jsonResponse(`{"ok":true,"result":{"access_token":"tg-token"}}`), nil
		case "/createPage":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if got := r.PostForm.Get("access_token"); got != "tg-token" {
				t.Errorf("access_token = %q", got)
			}
			if got := r.PostForm.Get("title"); got != "活动日历" {
				t.Errorf("title = %q", got)
			}
			return jsonResponse(`{"ok":true,"result":{"url":"https://telegra.ph/page-1"}}`), nil
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			return jsonResponse(`{"ok":false}`), nil
		}
	})

	url := tg.CreatePage(context.Background(), "活动日历", []Node{Element("p", nil, "hello")})
	if url != "https://telegra.ph/page-1" {
		t.Fatalf("url = %q", url)
	}
	if repo.kv["telegraph_access_token"] != "tg-token" {
		t.Error("access token not cached")
	}

	// Second page reuses the cached token, no second createAccount.
	url = tg.CreatePage(context.Background(), "活动日历", []Node{Element("p", nil, "again")})
	if url != "https://telegra.ph/page-1" {
		t.Fatalf("second url = %q", url)
	}
	var accounts int
	for _, p := range paths {
		if p == "/createAccount" {
			accounts++
		}
	}
	if accounts != 1 {
		t.Errorf("createAccount called %d times, want 1", accounts)
	}
}

func TestCreatePageFailureReturnsEmpty(t *testing.T) {
	repo := newKVRepo()
	repo.kv["telegraph_access_token"] = "tg-token"
	tg := newTestTelegraph(repo, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(`{"ok":false}`), nil
	})

	if url := tg.CreatePage(context.Background(), "t", []Node{"x"}); url != "" {
		t.Fatalf("url = %q, want empty on refusal", url)
	}
}

func TestCreatePageAccountRefusedReturnsEmpty(t *testing.T) {
	tg := newTestTelegraph(newKVRepo(), func(r *http.Request) (*http.Response, error) {
		return jsonResponse(`{"ok":false}`), nil
	})
	if url := tg.CreatePage(context.Background(), "t", []Node{"x"}); url != "" {
		t.Fatalf("url = %q, want empty when no account can be created", url)
	}
}

func TestElement(t *testing.T) {
	n := Element("p", map[string]string{"class": "x"}, "hello", Element("b", nil, "bold"))
	m, ok := n.(map[string]any)
	if !ok {
		t.Fatalf("node type %T", n)
	}
	if m["tag"] != "p" {
		t.Errorf("tag = %v", m["tag"])
	}
	attrs, _ := m["attrs"].(map[string]string)
	if attrs["class"] != "x" {
		t.Errorf("attrs = %v", m["attrs"])
	}
	children, _ := m["children"].([]Node)
	if len(children) != 2 || children[0] != "hello" {
		t.Errorf("children = %v", children)
	}

	bare := Element("hr", nil)
	bm := bare.(map[string]any)
	if _, has := bm["children"]; has {
		t.Error("childless element must omit children")
	}
	if _, has := bm["attrs"]; has {
		t.Error("attrless element must omit attrs")
	}
}
