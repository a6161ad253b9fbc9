// Package notify fans one message out to every configured push channel.
// Delivery is best-effort: each channel gets one retry, permanent failures
// are logged and swallowed, and nothing here ever propagates an error past
// the call site.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier delivers one text message to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient, text string)
}

// Config holds the channel credentials. Empty fields disable that channel.
type Config struct {
	TelegramBotToken string
	BarkKey          string
	FeishuWebhook    string
	ServerChanKey    string
}

type Pusher struct {
	cfg Config
	hc  *http.Client
}

func NewPusher(cfg Config) *Pusher {
	return &Pusher{cfg: cfg, hc: &http.Client{Timeout: 15 * time.Second}}
}

// Notify sends text to the recipient over every configured channel. The
// recipient is the Telegram chat id; the other channels are account-scoped
// and ignore it.
func (p *Pusher) Notify(ctx context.Context, recipient, text string) {
	if p.cfg.TelegramBotToken != "" && recipient != "" {
		p.attempt(ctx, "telegram", func(ctx context.Context) error {
			return p.sendTelegram(ctx, recipient, text)
		})
	}
	if p.cfg.BarkKey != "" {
		p.attempt(ctx, "bark", func(ctx context.Context) error {
			return p.sendBark(ctx, text)
		})
	}
	if p.cfg.FeishuWebhook != "" {
		p.attempt(ctx, "feishu", func(ctx context.Context) error {
			return p.sendFeishu(ctx, text)
		})
	}
	if p.cfg.ServerChanKey != "" {
		p.attempt(ctx, "serverchan", func(ctx context.Context) error {
			return p.sendServerChan(ctx, text)
		})
	}
}

func (p *Pusher) attempt(ctx context.Context, channel string, send func(context.Context) error) {
	var err error
	for try := 0; try < 2; try++ {
		if err = send(ctx); err == nil {
			return
		}
	}
	log.Error().Err(err).Str("channel", channel).Msg("notification failed")
}

func (p *Pusher) sendTelegram(ctx context.Context, chatID, text string) error {
	body, _ := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	u := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", p.cfg.TelegramBotToken)
	return p.postJSON(ctx, u, body)
}

func (p *Pusher) sendBark(ctx context.Context, text string) error {
	u := fmt.Sprintf("https://api.day.app/%s/McDonalds_Coupon/%s",
		p.cfg.BarkKey, url.PathEscape(text))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return p.do(req)
}

func (p *Pusher) sendFeishu(ctx context.Context, text string) error {
	body, _ := json.Marshal(map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": "McDonalds Coupon Report:\n" + text},
	})
	return p.postJSON(ctx, p.cfg.FeishuWebhook, body)
}

func (p *Pusher) sendServerChan(ctx context.Context, text string) error {
	u := fmt.Sprintf("https://sctapi.ftqq.com/%s.send", p.cfg.ServerChanKey)
	form := url.Values{"title": {"McDonalds Coupon Report"}, "desp": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req)
}

func (p *Pusher) postJSON(ctx context.Context, u string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req)
}

func (p *Pusher) do(req *http.Request) error {
	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: %s returned status %d", req.URL.Host, resp.StatusCode)
	}
	return nil
}
