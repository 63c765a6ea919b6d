// Package feishu delivers dashboard notifications to a Feishu chat webhook.
// Delivery is best effort: every transport failure is logged and reported as
// a boolean, never raised to the caller.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	back "github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/agentcluster/dashboard/internal/config"
)

const (
	requestTimeout = 10 * time.Second

	backoffAttempts = 2
	backoffInterval = time.Second
	backoffMax      = time.Minute

	// tokenExpiryMargin is subtracted from the server-reported token lifetime
	// so a cached token is refreshed before it actually expires.
	tokenExpiryMargin = 300 * time.Second
)

// Notifier posts messages to the configured webhook, optionally attaching a
// cached tenant access token.
type Notifier struct {
	log *log.Entry
	cl  *http.Client
	cfg config.FeishuConfig

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New returns a notifier for the given configuration.
func New(cfg config.FeishuConfig) *Notifier {
	cl := cleanhttp.DefaultClient()
	cl.Timeout = requestTimeout
	return &Notifier{
		log: log.WithField("component", "feishu-notifier"),
		cl:  cl,
		cfg: cfg,
	}
}

// IsEnabled reports whether a webhook endpoint is configured. All send
// operations are no-ops returning false while disabled.
func (n *Notifier) IsEnabled() bool {
	return n.cfg.WebhookURL != ""
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// tenantAccessToken returns the cached tenant access token, fetching a fresh
// one when the cache is expired. Fetch failures yield an empty token; the
// caller treats its absence as a soft failure.
func (n *Notifier) tenantAccessToken(ctx context.Context) string {
	if n.cfg.AppID == "" || n.cfg.AppSecret == "" {
		return ""
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.token != "" && time.Now().Before(n.tokenExpiry) {
		return n.token
	}

	token, expire, err := n.fetchToken(ctx)
	if err != nil {
		n.log.WithError(err).Error("failed to fetch tenant access token")
		return ""
	}
	n.token = token
	n.tokenExpiry = time.Now().Add(time.Duration(expire)*time.Second - tokenExpiryMargin)
	return n.token
}

func (n *Notifier) fetchToken(ctx context.Context) (string, int, error) {
	body, err := json.Marshal(tokenRequest{AppID: n.cfg.AppID, AppSecret: n.cfg.AppSecret})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, n.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := n.cl.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(err, "requesting tenant access token")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			n.log.WithError(err).Warn("failed to close token response body")
		}
	}()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, errors.Wrap(err, "decoding token response")
	}
	if tr.Code != 0 {
		return "", 0, errors.Errorf("token endpoint returned code %d: %s", tr.Code, tr.Msg)
	}
	return tr.TenantAccessToken, tr.Expire, nil
}

// post delivers one webhook payload with bounded retries. Responses >= 500
// are retried, >= 400 fail permanently; a 2xx-equivalent response is the only
// success.
func (n *Notifier) post(ctx context.Context, payload interface{}) bool {
	if !n.IsEnabled() {
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.WithError(err).Error("failed to marshal webhook payload")
		return false
	}
	token := n.tenantAccessToken(ctx)

	if err := back.Retry(
		func() error { return n.deliver(ctx, body, token) },
		backoff(),
	); err != nil {
		n.log.WithError(err).Error("failed to deliver webhook message")
		return false
	}
	return true
}

func backoff() back.BackOff {
	bf := back.NewExponentialBackOff()
	bf.InitialInterval = backoffInterval
	bf.MaxInterval = backoffMax
	return back.WithMaxRetries(bf, backoffAttempts)
}

func (n *Notifier) deliver(ctx context.Context, payload []byte, token string) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return back.Permanent(errors.Wrap(err, "creating webhook request"))
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.cl.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending webhook request")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			n.log.WithError(err).Warn("failed to close response body")
		}
	}()

	switch {
	case resp.StatusCode >= 500:
		return errors.Errorf("request returned %v", resp.StatusCode)
	case resp.StatusCode >= 400:
		return back.Permanent(errors.Errorf("request returned %v", resp.StatusCode))
	default:
		return nil
	}
}

// SendText posts a plain text message.
func (n *Notifier) SendText(ctx context.Context, text string) bool {
	return n.post(ctx, map[string]interface{}{
		"msg_type": "text",
		"content":  map[string]string{"text": text},
	})
}

// Card is a titled, colored markdown message.
type Card struct {
	Title string
	// Color is the header theme, one of blue/green/red/yellow/grey; severity
	// names are accepted as aliases.
	Color   string
	Content string
}

var colorMap = map[string]string{
	"blue":    "blue",
	"green":   "green",
	"red":     "red",
	"yellow":  "yellow",
	"grey":    "grey",
	"error":   "red",
	"warning": "yellow",
	"info":    "blue",
	"success": "green",
}

// SendCard posts an interactive card with a markdown body and an action
// button linking back to the dashboard.
func (n *Notifier) SendCard(ctx context.Context, card Card) bool {
	theme, ok := colorMap[card.Color]
	if !ok {
		theme = "blue"
	}

	payload := map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": card.Title,
				},
				"template": theme,
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag":     "markdown",
					"content": card.Content,
				},
				map[string]interface{}{
					"tag": "action",
					"actions": []interface{}{
						map[string]interface{}{
							"tag": "button",
							"text": map[string]interface{}{
								"tag":     "plain_text",
								"content": "View details",
							},
							"type": "primary",
							"url":  n.cfg.DashboardURL,
						},
					},
				},
			},
		},
	}
	return n.post(ctx, payload)
}
