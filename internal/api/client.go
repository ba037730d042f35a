// internal/api/client.go
// REST client for the chat backend. Every response comes wrapped in the
// common envelope {code, message, result}; result is decoded into the
// caller's type only when both the HTTP status and the envelope code agree
// the call succeeded.

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
	"time"

	"github.com/rs/zerolog"

	"github.com/TuongNguyen09/web-chat/internal/chat"
)

const defaultTimeout = 15 * time.Second

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a server-reported failure from the response envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client talks to the backend REST API. Safe for concurrent use once the
// token is set.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
	token   string
}

// NewClient returns a client for the API at baseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("component", "api").Logger(),
	}
}

// SetToken installs the bearer token used on every subsequent request.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Code: resp.StatusCode, Message: resp.Status}
		}
		return fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
	}
	if resp.StatusCode >= 400 || env.Code >= 400 {
		code := env.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Message: env.Message}
	}

	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s %s: decode result: %w", method, path, err)
	}
	return nil
}

// LoginResult is the sign-in response.
type LoginResult struct {
	Token string        `json:"token"`
	User  chat.UserInfo `json:"user"`
}

// Login authenticates and installs the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &out); err != nil {
		return out, err
	}
	if out.Token == "" {
		return out, errors.New("signin succeeded without a token")
	}
	c.SetToken(out.Token)
	return out, nil
}

// CurrentUser fetches the signed-in user's profile.
func (c *Client) CurrentUser(ctx context.Context) (chat.UserInfo, error) {
	var out chat.UserInfo
	err := c.do(ctx, http.MethodGet, "/users/profile", nil, &out)
	return out, err
}

// Chats fetches the user's chat list, optionally filtered by keyword.
func (c *Client) Chats(ctx context.Context, keyword string) ([]chat.Chat, error) {
	path := "/chats"
	if keyword != "" {
		path += "?keyword=" + url.QueryEscape(keyword)
	}
	var out []chat.Chat
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// FetchPage retrieves one page of a conversation's history, newest first.
// Implements the paginator's fetch contract.
func (c *Client) FetchPage(ctx context.Context, chatID string, page, size int) (chat.PageResult, error) {
	path := fmt.Sprintf("/messages/chat/%s?page=%d&size=%d", url.PathEscape(chatID), page, size)
	var out chat.PageResult
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// DeleteMessage removes one of the user's own messages. Peers learn about it
// through the deletion push on the chat topic.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(messageID), nil, nil)
}

// UnreadCounts fetches the server's unread counts, keyed by chat id.
func (c *Client) UnreadCounts(ctx context.Context) (map[string]int64, error) {
	var out map[string]int64
	err := c.do(ctx, http.MethodGet, "/unread", nil, &out)
	return out, err
}

// MarkRead acknowledges a conversation as read up to lastMessageID.
// Implements the ingest layer's read-marker contract.
func (c *Client) MarkRead(ctx context.Context, chatID, lastMessageID string) error {
	body := map[string]string{"lastMessageId": lastMessageID}
	return c.do(ctx, http.MethodPost, "/unread/"+url.PathEscape(chatID)+"/read", body, nil)
}

// ActiveTypers fetches who is typing in a conversation right now, keyed by
// user id with display names as values.
func (c *Client) ActiveTypers(ctx context.Context, chatID string) (map[string]string, error) {
	var out map[string]string
	err := c.do(ctx, http.MethodGet, "/typing/"+url.PathEscape(chatID), nil, &out)
	return out, err
}

// PresenceSnapshot fetches the currently online users: user id to last-seen
// epoch millis.
func (c *Client) PresenceSnapshot(ctx context.Context) (map[string]int64, error) {
	var out map[string]int64
	err := c.do(ctx, http.MethodGet, "/presence/online", nil, &out)
	return out, err
}

// PresenceByUser fetches one user's presence.
func (c *Client) PresenceByUser(ctx context.Context, userID string) (chat.PresenceEvent, error) {
	var out chat.PresenceEvent
	err := c.do(ctx, http.MethodGet, "/presence/"+url.PathEscape(userID), nil, &out)
	return out, err
}
