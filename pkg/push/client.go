package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/qri-io/jsonschema"
	"github.com/tolkbridge/tolka/internal/config"
)

// payloadSchema gates every outbound body: a payload missing a contract
// field never leaves the process.
const payloadSchemaJSON = `{
	"type": "object",
	"required": ["app_id", "tags", "data", "title", "contents", "ios_badgeType", "ios_badgeCount", "android_sound", "ios_sound"],
	"properties": {
		"app_id": {"type": "string", "minLength": 1},
		"tags": {"type": "array"},
		"data": {"type": "object"},
		"title": {"type": "object"},
		"contents": {"type": "object"},
		"ios_badgeType": {"type": "string"},
		"ios_badgeCount": {"type": "integer"},
		"android_sound": {"type": "string"},
		"ios_sound": {"type": "string"},
		"send_after": {"type": "string"}
	}
}`

// Client delivers push payloads over HTTPS JSON POST, with retries and
// schema validation on the way out.
type Client struct {
	cfg    config.PushConfig
	app    config.PushApp
	client *http.Client
	schema *jsonschema.Schema

	closed int32
}

// NewClient creates a push client for the credentials matching the
// runtime environment.
func NewClient(cfg config.PushConfig, environment string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(payloadSchemaJSON), rs); err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		app:    cfg.App(environment),
		client: httpClient,
		schema: rs,
	}
	logger.Info("push: client created",
		slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

// AppID returns the app credential chosen for this environment.
func (c *Client) AppID() string { return c.app.AppID }

// Send validates and posts one notification. Retries cover transport
// errors and 5xx responses; 4xx responses fail immediately.
func (c *Client) Send(ctx context.Context, n *Notification) error {
	if n.AppID == "" {
		n.AppID = c.app.AppID
	}

	body, err := n.MarshalBody()
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.validate(ctx, body); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
			}
		}

		retryable, err := c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("push: send attempt failed",
			slog.Int("attempt", attempt), slog.String("error", err.Error()))
		if !retryable {
			return lastErr
		}
	}

	return fmt.Errorf("push send failed after %d attempts: %w", c.cfg.Retries+1, lastErr)
}

func (c *Client) validate(ctx context.Context, body []byte) error {
	errs, err := c.schema.ValidateBytes(ctx, body)
	if err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("payload violates wire contract: %s", errs[0].Error())
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) (retryable bool, err error) {
	ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxReq, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.app.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("push endpoint returned status %d: %s", resp.StatusCode, msg)
	return resp.StatusCode >= 500, err
}

// Close releases idle connections. Close is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}

// package-level logger for pkg/push; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/push. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
