// Package mcp issues single tool calls against the fixed remote MCP endpoint
// over streamable HTTP (JSON-RPC 2.0). Failures are always returned as
// values: either a typed error the dispatcher can classify, or a friendly
// user-presentable string via FriendlyError.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultEndpoint = "https://mcp.mcd.cn/mcp-servers/mcd-mcp"

	protocolVersion = "2025-06-18"
	callTimeout     = 60 * time.Second
	maxAttempts     = 3
	backoffBase     = time.Second
	backoffCap      = 10 * time.Second

	placeholderToken = "your_token_here"
)

// Known tool names of the remote service. "campaign-calender" is the remote
// service's own spelling.
const (
	ToolClaim            = "auto-bind-coupons"
	ToolAvailableCoupons = "available-coupons"
	ToolMyCoupons        = "my-coupons"
	ToolCampaignCalendar = "campaign-calender"
)

var (
	ErrInvalidToken = errors.New("mcp: invalid or placeholder token")
	ErrRateLimited  = errors.New("mcp: rate limited (429)")
	ErrTimeout      = errors.New("mcp: call timed out")
	ErrService      = errors.New("mcp: service unavailable")
)

// FriendlyError maps a client error to the localized string shown to users.
func FriendlyError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return "Error: Invalid Token."
	case errors.Is(err, ErrRateLimited):
		return "麦当劳 MCP 接口返回 429（请求过于频繁），请稍后再试。"
	case errors.Is(err, ErrTimeout):
		return "麦当劳 MCP 服务响应超时，请稍后再试。"
	default:
		return "麦当劳 MCP 服务当前出现异常，可能在维护或短暂故障，请稍后再试。"
	}
}

// ContentBlock is one typed block of a tool result payload.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Result is the raw content of one successful tool call.
type Result struct {
	Content []ContentBlock `json:"content"`
}

// Text joins all text blocks; non-text blocks are noted inline so callers
// never lose track of them silently.
func (r Result) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
			b.WriteString("\n")
		} else {
			fmt.Fprintf(&b, "[%s]\n", c.Type)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Invoker issues one remote tool call per Call.
type Invoker interface {
	Call(ctx context.Context, token, tool string, args map[string]any) (Result, error)
}

type Client struct {
	endpoint string
	hc       *http.Client
	sleep    func(time.Duration) // replaceable in tests
}

func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: callTimeout},
		sleep:    time.Sleep,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Call performs one tool invocation: initialize, then tools/call, under a
// single 60s wall-clock budget. Transient failures (network, 5xx, 429) are
// retried up to 3 times with exponential backoff; auth failures never are.
func (c *Client) Call(ctx context.Context, token, tool string, args map[string]any) (Result, error) {
	if token == "" || token == placeholderToken {
		return Result{}, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(backoffExp(attempt))
		}
		res, err := c.callOnce(ctx, token, tool, args)
		if err == nil {
			log.Debug().Str("tool", tool).Dur("cost", time.Since(start)).Msg("mcp call finished")
			return res, nil
		}
		if !retryable(err) {
			return Result{}, err
		}
		lastErr = err
	}
	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, ErrTimeout
	}
	return Result{}, lastErr
}

func (c *Client) callOnce(ctx context.Context, token, tool string, args map[string]any) (Result, error) {
	if _, err := c.post(ctx, token, rpcRequest{
		JSONRPC: "2.0", ID: 1, Method: "initialize",
		Params: map[string]any{"protocolVersion": protocolVersion},
	}); err != nil {
		return Result{}, err
	}

	params := map[string]any{"name": tool}
	if args != nil {
		params["arguments"] = args
	}
	raw, err := c.post(ctx, token, rpcRequest{JSONRPC: "2.0", ID: 2, Method: "tools/call", Params: params})
	if err != nil {
		return Result{}, err
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("%w: decode result: %v", ErrService, err)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, token string, body rpcRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("mcp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("MCP-Protocol-Version", protocolVersion)

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrInvalidToken, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrService, resp.StatusCode)
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrService, resp.StatusCode, string(b))
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrService, err)
	}
	if rr.Error != nil {
		msg := strings.ToLower(rr.Error.Message)
		if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid token") || rr.Error.Code == 401 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, rr.Error.Message)
		}
		if strings.Contains(rr.Error.Message, "429") || rr.Error.Code == 429 {
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("%w: rpc error %d: %s", ErrService, rr.Error.Code, rr.Error.Message)
	}
	return rr.Result, nil
}

// retryable reports whether err is transient. Auth failures are terminal.
func retryable(err error) bool {
	if errors.Is(err, ErrInvalidToken) {
		return false
	}
	return errors.Is(err, ErrService) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

func backoffExp(attempt int) time.Duration {
	d := backoffBase << (attempt - 1) // 1s, 2s, 4s...
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
