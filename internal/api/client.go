// Package api is the HTTP client for the iMessage gateway.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/config"
	"github.com/matheus3301/msgview/internal/model"
)

// ClientMsgIDHeader carries the client correlation id of a send.
const ClientMsgIDHeader = "X-Client-Msg-Id"

// Client talks to the gateway REST endpoints.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a gateway client for the configured server.
func NewClient(cfg config.Server, logger *zap.Logger) (*Client, error) {
	return NewClientURL(cfg.BaseURL(), cfg.Token, cfg.Timeout.D(), logger)
}

// NewClientURL creates a gateway client for an explicit base URL.
func NewClientURL(baseURL, token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   u,
		token:  token,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// BaseURL returns the gateway base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// FeedURL returns the websocket URL of the live feed.
func (c *Client) FeedURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// Header returns the headers every request carries.
func (c *Client) Header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// Chats lists conversations, most recent activity first.
func (c *Client) Chats(ctx context.Context, limit int) ([]model.Chat, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var wire []chatJSON
	if _, err := c.do(ctx, http.MethodGet, "/chats", q, nil, nil, &wire); err != nil {
		return nil, err
	}
	chats := make([]model.Chat, 0, len(wire))
	for _, ch := range wire {
		chats = append(chats, chatFromWire(ch))
	}
	return chats, nil
}

// MessagesQuery selects a page of a conversation. Zero cursors are omitted;
// without cursors the most recent page is returned.
type MessagesQuery struct {
	ChatID      int64
	Limit       int
	BeforeRowID int64
	AfterRowID  int64
}

// Messages fetches a page of messages. Order is not guaranteed.
func (c *Client) Messages(ctx context.Context, mq MessagesQuery) ([]model.Message, error) {
	q := url.Values{}
	if mq.ChatID != 0 {
		q.Set("chat_id", strconv.FormatInt(mq.ChatID, 10))
	}
	if mq.Limit > 0 {
		q.Set("limit", strconv.Itoa(mq.Limit))
	}
	if mq.BeforeRowID > 0 {
		q.Set("before_rowid", strconv.FormatInt(mq.BeforeRowID, 10))
	}
	if mq.AfterRowID > 0 {
		q.Set("after_rowid", strconv.FormatInt(mq.AfterRowID, 10))
	}
	var wire []MessageJSON
	if _, err := c.do(ctx, http.MethodGet, "/messages", q, nil, nil, &wire); err != nil {
		return nil, err
	}
	msgs := MessagesFromWire(wire)
	for i := range msgs {
		if msgs[i].ChatID == 0 {
			msgs[i].ChatID = mq.ChatID
		}
	}
	return msgs, nil
}

// SendText asks the gateway to deliver text. Success only means the request
// was accepted; the sent message arrives through the live feed.
func (c *Client) SendText(ctx context.Context, recipient, text, clientMsgID string) error {
	body, err := json.Marshal(sendRequest{Recipient: recipient, Message: text})
	if err != nil {
		return fmt.Errorf("encode send: %w", err)
	}
	h := http.Header{}
	if clientMsgID != "" {
		h.Set(ClientMsgIDHeader, clientMsgID)
	}
	var resp sendResponse
	if _, err := c.do(ctx, http.MethodPost, "/send", nil, h, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Status: http.StatusOK, Detail: str(resp.Error)}
	}
	return nil
}

// SearchQuery is a message search request. ChatID 0 searches every chat.
type SearchQuery struct {
	Query  string
	ChatID int64
	Limit  int
	Offset int
}

// SearchPage is one page of search results, newest first.
type SearchPage struct {
	Messages []model.Message
	Offset   int
	HasMore  bool
}

// NextOffset returns the offset of the following page.
func (p *SearchPage) NextOffset() int { return p.Offset + len(p.Messages) }

// Search runs a text search.
func (c *Client) Search(ctx context.Context, sq SearchQuery) (*SearchPage, error) {
	q := url.Values{}
	q.Set("q", sq.Query)
	if sq.ChatID != 0 {
		q.Set("chat_id", strconv.FormatInt(sq.ChatID, 10))
	}
	if sq.Limit > 0 {
		q.Set("limit", strconv.Itoa(sq.Limit))
	}
	if sq.Offset > 0 {
		q.Set("offset", strconv.Itoa(sq.Offset))
	}
	var resp searchResponse
	if _, err := c.do(ctx, http.MethodGet, "/search", q, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &SearchPage{
		Messages: MessagesFromWire(resp.Messages),
		Offset:   sq.Offset,
		HasMore:  resp.HasMore,
	}, nil
}

// LookupContact resolves a handle. maxAge is the Cache-Control lifetime
// the gateway attached, or zero. Unknown handles return an error matching
// ErrNotFound.
func (c *Client) LookupContact(ctx context.Context, handle string) (*model.Contact, time.Duration, error) {
	var wire contactJSON
	h, err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(handle), nil, nil, nil, &wire)
	if err != nil {
		return nil, 0, err
	}
	contact := contactFromWire(&wire)
	if contact.Handle == "" {
		contact.Handle = handle
	}
	return contact, MaxAge(h.Get("Cache-Control")), nil
}

// Health fetches the gateway health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// MaxAge extracts the max-age directive of a Cache-Control header.
func MaxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		v, ok := strings.CutPrefix(strings.TrimSpace(directive), "max-age=")
		if !ok {
			continue
		}
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, extra http.Header, body []byte, out any) (http.Header, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = c.Header()
	for k, vs := range extra {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w: %w", method, path, ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		detail := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &eb) == nil {
			if m := eb.message(); m != "" {
				detail = m
			}
		}
		return resp.Header, fmt.Errorf("%s %s: %w", method, path, &APIError{Status: resp.StatusCode, Detail: detail})
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.Header, fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return resp.Header, nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
