// Package judicial talks to the Judicial Yuan open-data judgment API
package judicial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
)

// ErrNoCredentials is returned when no API account is configured
var ErrNoCredentials = errors.New("judicial API user and password not configured")

const tokenKey = "token"

// APIError is an error reported in the response body
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string { return "judicial " + e.Op + ": " + e.Message }

// ChangeSet is one day of the change list
type ChangeSet struct {
	Date string   `json:"date"`
	List []string `json:"list"`
}

// FullText holds the judgment body
type FullText struct {
	Type    string `json:"JFULLTYPE"` // "text" or "file"
	Content string `json:"JFULLCONTENT"`
	PDF     string `json:"JFULLPDF"`
}

// Attachment is a file attached to a judgment
type Attachment struct {
	Title string `json:"TITLE"`
	URL   string `json:"URL"`
}

// Document is one judgment
type Document struct {
	JID         string       `json:"JID"`
	Year        string       `json:"JYEAR"`
	Case        string       `json:"JCASE"`
	No          string       `json:"JNO"`
	Date        string       `json:"JDATE"`
	Title       string       `json:"JTITLE"`
	Full        FullText     `json:"JFULLX"`
	Attachments []Attachment `json:"ATTACHMENTS"`
}

type authResponse struct {
	Token string `json:"Token"`
	Error string `json:"error"`
}

// Client calls Auth, JList and JDoc. Tokens are cached for TokenTTL and
// refreshed once when the API rejects them.
type Client struct {
	http     *resty.Client
	user     string
	password string
	tokens   *gocache.Cache
	ttl      time.Duration
	log      *logger.Logger
}

// NewClient builds a client from config
func NewClient(cfg model.JudicialConfig, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 5*time.Hour + 30*time.Minute
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:     http,
		user:     cfg.User,
		password: cfg.Password,
		tokens:   gocache.New(ttl, 10*time.Minute),
		ttl:      ttl,
		log:      logger.Named("judicial"),
	}
}

// Configured reports whether credentials are present
func (c *Client) Configured() bool {
	return c.user != "" && c.password != ""
}

// Token returns a cached token or authenticates
func (c *Client) Token(ctx context.Context) (string, error) {
	if v, ok := c.tokens.Get(tokenKey); ok {
		return v.(string), nil
	}
	if !c.Configured() {
		return "", ErrNoCredentials
	}

	var out authResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"user": c.user, "password": c.password}).
		SetResult(&out).
		SetError(&out).
		Post("/Auth")
	if err != nil {
		return "", fmt.Errorf("judicial auth: %w", err)
	}
	if out.Error != "" {
		return "", &APIError{Op: "auth", Message: out.Error}
	}
	if resp.IsError() {
		return "", &APIError{Op: "auth", Message: resp.Status()}
	}
	if out.Token == "" {
		return "", &APIError{Op: "auth", Message: "no token in response"}
	}

	c.tokens.Set(tokenKey, out.Token, c.ttl)
	c.log.Debug().Dur("ttl", c.ttl).Msg("judicial token refreshed")
	return out.Token, nil
}

// Invalidate drops the cached token
func (c *Client) Invalidate() {
	c.tokens.Delete(tokenKey)
}

// JList returns the judgments changed in the last 7 days
func (c *Client) JList(ctx context.Context) ([]ChangeSet, error) {
	var out []ChangeSet
	if err := c.call(ctx, "/JList", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// JDoc fetches one judgment by id
func (c *Client) JDoc(ctx context.Context, jid string) (*Document, error) {
	var out Document
	if err := c.call(ctx, "/JDoc", map[string]string{"j": jid}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call posts body plus a token. A body-level error with a cached token is
// retried once with a fresh token.
func (c *Client) call(ctx context.Context, path string, body map[string]string, dst any) error {
	for attempt := 0; attempt < 2; attempt++ {
		_, cached := c.tokens.Get(tokenKey)
		token, err := c.Token(ctx)
		if err != nil {
			return err
		}

		payload := map[string]string{"token": token}
		for k, v := range body {
			payload[k] = v
		}
		resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(path)
		if err != nil {
			return fmt.Errorf("judicial %s: %w", path, err)
		}

		raw := resp.Body()
		if msg := bodyError(raw); msg != "" {
			if cached && attempt == 0 {
				c.log.Debug().Str("path", path).Str("error", msg).Msg("retrying with a fresh token")
				c.Invalidate()
				continue
			}
			return &APIError{Op: strings.TrimPrefix(path, "/"), Message: msg}
		}
		if resp.IsError() {
			return &APIError{Op: strings.TrimPrefix(path, "/"), Message: resp.Status()}
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("judicial %s: decode: %w", path, err)
		}
		return nil
	}
	return &APIError{Op: strings.TrimPrefix(path, "/"), Message: "token rejected"}
}

// bodyError extracts {"error": "..."} from an object response
func bodyError(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return ""
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(trimmed), &e) != nil {
		return ""
	}
	return e.Error
}
