// Package notify sends order summaries to an operator chat through a
// Telegram-style bot API. Delivery is best effort.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/trgovina/internal/config"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

const maxResponseBodySize = 16 * 1024

// ErrNotConfigured is reported when no bot token or chat id is set.
var ErrNotConfigured = errors.New("notifications not configured")

// Credentials identify the bot and the chat it posts to.
type Credentials struct {
	Token  string
	ChatID string
}

// Delivery is the result of one send attempt. It is logged, never returned
// to order callers.
type Delivery struct {
	Status int
	Err    error
}

// OK reports whether the message was accepted.
func (d Delivery) OK() bool { return d.Err == nil }

// Notifier posts messages to the bot API.
type Notifier struct {
	db      *sqlx.DB
	static  config.NotifyConfig
	client  *http.Client
	timeout time.Duration

	wg sync.WaitGroup
}

// New creates a Notifier. Credentials in the settings table take precedence
// over cfg.
func New(db *sqlx.DB, cfg config.NotifyConfig) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		db:      db,
		static:  cfg,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

// Credentials resolves the bot token and chat id, settings first. A failed
// settings read is logged and the static values are used.
func (n *Notifier) Credentials(ctx context.Context) Credentials {
	creds := Credentials{
		Token:  n.setting(ctx, model.SettingTelegramBotToken),
		ChatID: n.setting(ctx, model.SettingTelegramChatID),
	}
	if creds.Token == "" {
		creds.Token = n.static.BotToken
	}
	if creds.ChatID == "" {
		creds.ChatID = n.static.ChatID
	}
	return creds
}

func (n *Notifier) setting(ctx context.Context, key string) string {
	value, err := store.GetSetting(ctx, n.db, key)
	if err != nil {
		slog.Warn("reading notification setting, using static config", "key", key, "error", err)
		return ""
	}
	return value
}

// NotifyOrder sends the order summary in the background. It returns
// immediately; the outcome is only logged.
func (n *Notifier) NotifyOrder(o model.Order) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		d := n.Send(ctx, FormatOrder(o))
		switch {
		case d.OK():
		case errors.Is(d.Err, ErrNotConfigured):
			slog.Warn("order notification skipped", "order", o.ID, "error", d.Err)
		default:
			slog.Error("order notification failed", "order", o.ID, "status", d.Status, "error", d.Err)
		}
	}()
}

// Wait blocks until all background notifications have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close waits for background notifications and releases idle connections.
func (n *Notifier) Close() {
	n.wg.Wait()
	n.client.CloseIdleConnections()
}

type sendMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts text synchronously and reports the outcome.
func (n *Notifier) Send(ctx context.Context, text string) Delivery {
	creds := n.Credentials(ctx)
	if creds.Token == "" || creds.ChatID == "" {
		return Delivery{Err: ErrNotConfigured}
	}

	body, err := json.Marshal(sendMessage{ChatID: creds.ChatID, Text: text})
	if err != nil {
		return Delivery{Err: fmt.Errorf("encoding message: %w", err)}
	}

	endpoint := strings.TrimRight(n.static.APIURL, "/") + "/bot" + creds.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Delivery{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL embeds the token; keep it out of logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return Delivery{Err: fmt.Errorf("sending message: %w", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	var parsed apiResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.OK {
		msg := parsed.Description
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Delivery{Status: resp.StatusCode, Err: fmt.Errorf("bot api: %s", msg)}
	}
	return Delivery{Status: resp.StatusCode}
}

// MaskToken hides all but the last four characters of a token.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
