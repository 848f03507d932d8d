// Package api is the HTTP client for the messaging server's notification
// endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/poll"
	"github.com/colonyops/cinq/internal/notifier/push"
)

const userAgent = "cinq-notifier"

// StatusError is returned for non-2xx poll responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.Code)
}

// Options locate the server endpoints.
type Options struct {
	BaseURL  string
	PollPath string
	PushPath string
	Timeout  time.Duration
}

// Client talks to the messaging server.
type Client struct {
	opts Options
	http *http.Client
	log  zerolog.Logger
}

// New creates a client. The timeout bounds every request.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  logging.Component("api"),
	}
}

// LatestMessage is the summary of the newest message in a poll response.
type LatestMessage struct {
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	IsPing     bool   `json:"isPing"`
	URL        string `json:"url,omitempty"`
}

// PollResponse is the body of GET <poll_path>.
type PollResponse struct {
	NewCount      int            `json:"newCount"`
	LatestMessage *LatestMessage `json:"latestMessage,omitempty"`
	ServerTime    ServerTime     `json:"serverTime,omitzero"`
}

// ServerTime decodes either epoch milliseconds or an RFC 3339 string.
type ServerTime struct {
	time.Time
}

func (t ServerTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.UnixMilli(), 10)), nil
}

func (t *ServerTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	t.Time = parsed
	return nil
}

// Response is the envelope of the push registration endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubscribeRequest is the POST body of the push registration endpoint.
type SubscribeRequest struct {
	Subscription notify.Subscription `json:"subscription"`
}

// UnsubscribeRequest is the DELETE body of the push registration endpoint.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// SinceParam formats the checkpoint sent as ?since=.
func SinceParam(since time.Time) string {
	if since.IsZero() {
		return "0"
	}
	return strconv.FormatInt(since.UnixMilli(), 10)
}

// Poll asks the server how many messages arrived after since.
func (c *Client) Poll(ctx context.Context, token string, since time.Time) (poll.Result, error) {
	u, err := c.endpoint(c.opts.PollPath)
	if err != nil {
		return poll.Result{}, err
	}
	q := u.Query()
	q.Set("since", SinceParam(since))
	q.Set("count", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return poll.Result{}, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return poll.Result{}, fmt.Errorf("poll: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return poll.Result{}, &StatusError{Code: resp.StatusCode}
	}

	var body PollResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return poll.Result{}, fmt.Errorf("decode poll response: %w", err)
	}

	res := poll.Result{
		NewCount:   body.NewCount,
		ServerTime: body.ServerTime.Time,
	}
	if m := body.LatestMessage; m != nil {
		res.Latest = &poll.Message{
			SenderName: m.SenderName,
			Content:    m.Content,
			IsPing:     m.IsPing,
			URL:        m.URL,
		}
	}
	return res, nil
}

// Register mirrors sub to the server. A refusal is a *push.Rejection.
func (c *Client) Register(ctx context.Context, token string, sub notify.Subscription) error {
	return c.pushRequest(ctx, http.MethodPost, token, SubscribeRequest{Subscription: sub})
}

// Unregister removes endpoint from the server.
func (c *Client) Unregister(ctx context.Context, token string, endpoint string) error {
	return c.pushRequest(ctx, http.MethodDelete, token, UnsubscribeRequest{Endpoint: endpoint})
}

func (c *Client) pushRequest(ctx context.Context, method, token string, payload any) error {
	u, err := c.endpoint(c.opts.PushPath)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, c.opts.PushPath, err)
	}
	defer c.closeBody(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var body Response
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "server error"
		}
		return &push.Rejection{Status: resp.StatusCode, Message: msg}
	}

	c.log.Debug().Str("method", method).Str("message", body.Message).Msg("push registration acknowledged")
	return nil
}

func (c *Client) endpoint(path string) (*url.URL, error) {
	base, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	return base.ResolveReference(ref), nil
}

func (c *Client) authorize(req *http.Request, token string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.log.Debug().Err(err).Msg("close response body")
	}
}
