package report

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ppiankov/kidregistry/internal/model"
)

// Notifier delivers a flat report payload downstream
type Notifier interface {
	Notify(ctx context.Context, payload map[string]string) error
}

// NewNotifier builds the notifier named by cfg.Driver; "none" returns nil
func NewNotifier(cfg model.NotifyConfig) (Notifier, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "smtp":
		if len(cfg.Recipients) == 0 {
			return nil, errors.New("notify: smtp requires at least one recipient")
		}
		return NewSMTPNotifier(cfg), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, errors.New("notify: webhook_url is required")
		}
		return NewWebhookNotifier(cfg.WebhookURL, 10*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier emails the review team
type SMTPNotifier struct {
	addr       string
	auth       smtp.Auth
	from       string
	recipients []string
	send       sendMailFunc
}

// NewSMTPNotifier uses PLAIN auth when a user is configured
func NewSMTPNotifier(cfg model.NotifyConfig) *SMTPNotifier {
	n := &SMTPNotifier{
		addr:       cfg.SMTPHost + ":" + strconv.Itoa(cfg.SMTPPort),
		from:       cfg.From,
		recipients: cfg.Recipients,
		send:       smtp.SendMail,
	}
	if cfg.SMTPUser != "" {
		n.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return n
}

// Notify sends one message. net/smtp has no context support, so a cancelled
// ctx returns early and the send finishes in the background.
func (n *SMTPNotifier) Notify(ctx context.Context, payload map[string]string) error {
	msg := composeMail(n.from, n.recipients, payload)
	done := make(chan error, 1)
	go func() { done <- n.send(n.addr, n.auth, n.from, n.recipients, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func composeMail(from string, to []string, p map[string]string) []byte {
	location := p["location"]
	if location == "" {
		location = "未提供"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: [新通報] 被通報人：%s\r\n", p["suspectName"])
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "被通報人：%s\r\n", p["suspectName"])
	fmt.Fprintf(&b, "地點：%s\r\n", location)
	fmt.Fprintf(&b, "詳細描述：\r\n%s\r\n\r\n", p["description"])
	fmt.Fprintf(&b, "來自 IP: %s | 接收時間: %s\r\n", p["reporterIp"], p["timestamp"])
	return []byte(b.String())
}

// WebhookNotifier posts the payload as JSON
type WebhookNotifier struct {
	http *resty.Client
	url  string
}

// NewWebhookNotifier creates a notifier posting to url
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		http: resty.New().SetTimeout(timeout).SetRetryCount(1).
			SetHeader("Content-Type", "application/json"),
		url: url,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, payload map[string]string) error {
	resp, err := n.http.R().SetContext(ctx).SetBody(payload).Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: unexpected status %s", resp.Status())
	}
	return nil
}
