// Package publish renders long structured output as a hosted Telegraph
// page. Publishing is an optional enrichment: a "" URL (or any error) means
// the caller falls back to plain chunked text, never a fatal condition.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"couponflow/internal/store"
)

const (
	baseURL    = "https://api.telegra.ph"
	tokenKey   = "telegraph_access_token"
	shortName  = "McdBot"
	authorName = "McDonalds Bot"
)

// Node is one Telegraph content node: either a plain string or a tagged
// element with children.
type Node any

// Element builds a tagged node.
func Element(tag string, attrs map[string]string, children ...Node) Node {
	n := map[string]any{"tag": tag}
	if len(attrs) > 0 {
		n["attrs"] = attrs
	}
	if len(children) > 0 {
		n["children"] = children
	}
	return n
}

// Publisher creates hosted pages and returns their URLs.
type Publisher interface {
	CreatePage(ctx context.Context, title string, nodes []Node) string
}

type Telegraph struct {
	repo store.Repository
	hc   *http.Client
}

func NewTelegraph(repo store.Repository) *Telegraph {
	return &Telegraph{repo: repo, hc: &http.Client{Timeout: 30 * time.Second}}
}

// CreatePage publishes the nodes and returns the page URL, or "" on any
// failure. The access token is created lazily and cached in the kv store.
func (t *Telegraph) CreatePage(ctx context.Context, title string, nodes []Node) string {
	token, err := t.accessToken(ctx)
	if err != nil || token == "" {
		log.Warn().Err(err).Msg("telegraph account unavailable")
		return ""
	}

	content, err := json.Marshal(nodes)
	if err != nil {
		log.Warn().Err(err).Msg("telegraph content marshal failed")
		return ""
	}

	form := url.Values{
		"access_token":   {token},
		"title":          {title},
		"content":        {string(content)},
		"return_content": {"false"},
	}
	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			URL string `json:"url"`
		} `json:"result"`
	}
	if err := t.postForm(ctx, baseURL+"/createPage", form, &out); err != nil || !out.OK {
		log.Warn().Err(err).Bool("ok", out.OK).Msg("telegraph createPage failed")
		return ""
	}
	return out.Result.URL
}

func (t *Telegraph) accessToken(ctx context.Context) (string, error) {
	token, err := t.repo.GetValue(ctx, tokenKey)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	form := url.Values{"short_name": {shortName}, "author_name": {authorName}}
	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			AccessToken string `json:"access_token"`
		} `json:"result"`
	}
	if err := t.postForm(ctx, baseURL+"/createAccount", form, &out); err != nil {
		return "", err
	}
	if !out.OK || out.Result.AccessToken == "" {
		return "", fmt.Errorf("publish: createAccount refused")
	}
	if err := t.repo.SetValue(ctx, tokenKey, out.Result.AccessToken); err != nil {
		log.Warn().Err(err).Msg("telegraph token cache write failed")
	}
	return out.Result.AccessToken, nil
}

func (t *Telegraph) postForm(ctx context.Context, u string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := t.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("publish: telegraph returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
