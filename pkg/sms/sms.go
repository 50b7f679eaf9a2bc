package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/tolkbridge/tolka/internal/config"
)

// Sender delivers one text message and reports the gateway's delivery
// status string.
type Sender interface {
	Send(ctx context.Context, from, to, text string) (string, error)
}

// Gateway posts messages to an HTTP SMS provider as a form-encoded
// request.
type Gateway struct {
	cfg    config.SMSConfig
	client *http.Client
}

func NewGateway(cfg config.SMSConfig, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{cfg: cfg, client: httpClient}
}

func (g *Gateway) Send(ctx context.Context, from, to, text string) (string, error) {
	form := url.Values{}
	form.Set("from", from)
	form.Set("to", to)
	form.Set("message", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	status := strings.TrimSpace(string(body))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("sms: gateway rejected message",
			slog.String("to", to), slog.Int("status_code", resp.StatusCode))
		return status, fmt.Errorf("sms endpoint returned status %d: %s", resp.StatusCode, status)
	}
	return status, nil
}

// LogSender logs messages instead of delivering them; used when no
// gateway endpoint is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, from, to, text string) (string, error) {
	s.logger.InfoContext(ctx, "sms sent",
		slog.String("from", from), slog.String("to", to), slog.String("text", text))
	return "logged", nil
}

// package-level logger for pkg/sms; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/sms. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
