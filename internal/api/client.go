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
	"time"

	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/models"
)

// Client is a stateless wrapper around the assistant backend's auth and
// chat endpoints. It performs no retries; retry policy belongs to callers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ChatReply is the assistant's answer to one chat message.
type ChatReply struct {
	Text     string
	Metadata models.Metadata
}

type loginResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type callbackResponse struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

type chatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []HistoryItem `json:"conversation_history"`
}

// HistoryItem is the projection of a local message replayed to the backend.
// Metadata is nil when the turn carried none, matching the wire contract.
type HistoryItem struct {
	Role     models.Role      `json:"role"`
	Content  string           `json:"content"`
	Metadata *models.Metadata `json:"metadata"`
}

type chatResponse struct {
	Message     string          `json:"message"`
	ActionTaken string          `json:"action_taken"`
	Metadata    json.RawMessage `json:"metadata"`
}

type historyEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Role      models.Role     `json:"role"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// LoginURL fetches the identity-provider redirect target.
func (c *Client) LoginURL(ctx context.Context) (string, string, error) {
	var resp loginResponse
	if err := c.getJSON(ctx, "/auth/login", nil, &resp); err != nil {
		return "", "", &AuthError{Detail: errDetail(err), Err: err}
	}
	return resp.AuthorizationURL, resp.State, nil
}

// ExchangeCode completes the login handshake for an authorization code.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*models.User, error) {
	q := url.Values{"code": {code}}
	var resp callbackResponse
	if err := c.getJSON(ctx, "/auth/callback", q, &resp); err != nil {
		return nil, &AuthError{Detail: errDetail(err), Err: err}
	}
	if resp.User == nil || resp.User.ID == "" {
		err := fmt.Errorf("callback response missing user")
		return nil, &AuthError{Detail: "Authentication failed: no user returned", Err: err}
	}
	return resp.User, nil
}

// CurrentUser looks up the authenticated identity, used to verify a
// rehydrated session is still valid.
func (c *Client) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	q := url.Values{"user_id": {userID}}
	var user models.User
	if err := c.getJSON(ctx, "/auth/me", q, &user); err != nil {
		return nil, &AuthError{Detail: errDetail(err), Err: err}
	}
	return &user, nil
}

// SendMessage posts one user utterance together with the entire prior
// history. The backend holds no session memory between calls, so the replay
// must be complete and in order.
func (c *Client) SendMessage(ctx context.Context, userID, text string, history []HistoryItem) (*ChatReply, error) {
	body, err := json.Marshal(chatRequest{
		Message:             text,
		ConversationHistory: history,
	})
	if err != nil {
		return nil, &ChatError{Detail: errDetail(err), Err: err}
	}

	q := url.Values{"user_id": {userID}}
	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat/message", q, bytes.NewReader(body), &resp); err != nil {
		return nil, &ChatError{Detail: errDetail(err), Err: err}
	}

	meta := parseMetadata(resp.Metadata, c.logger)
	if meta.ActionTaken == "" {
		meta.ActionTaken = resp.ActionTaken
	}
	return &ChatReply{Text: resp.Message, Metadata: meta}, nil
}

// History fetches the backend's durable chat log, oldest first.
func (c *Client) History(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	q := url.Values{
		"user_id": {userID},
		"limit":   {strconv.Itoa(limit)},
	}
	var entries []historyEntry
	if err := c.getJSON(ctx, "/chat/history", q, &entries); err != nil {
		return nil, &ChatError{Detail: errDetail(err), Err: err}
	}

	msgs := make([]models.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, models.Message{
			ID:        e.ID,
			Role:      e.Role,
			Content:   e.Content,
			Timestamp: e.CreatedAt,
			Metadata:  parseMetadata(e.Metadata, c.logger),
		})
	}
	return msgs, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := decodeDetail(resp)
		c.logger.Warn("Backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail))
		return &statusError{status: resp.StatusCode, detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// statusError carries the backend's {detail} payload for a non-2xx reply.
type statusError struct {
	status int
	detail string
}

func (e *statusError) Error() string { return e.detail }

// decodeDetail extracts the error convention payload, falling back to a
// generic transport message when the body carries no detail.
func decodeDetail(resp *http.Response) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		if json.Unmarshal(b, &payload) == nil && payload.Detail != "" {
			return payload.Detail
		}
	}
	return fmt.Sprintf("Request failed with status %d", resp.StatusCode)
}

// errDetail returns the human-readable text for any transport failure.
func errDetail(err error) string {
	var se *statusError
	if errors.As(err, &se) {
		return se.detail
	}
	return err.Error()
}

// parseMetadata validates the backend's loosely-typed metadata bag into the
// closed Metadata variant. Unknown keys are dropped here so nothing untyped
// crosses into the session store; null or absent yields the zero value.
func parseMetadata(raw json.RawMessage, logger *zap.Logger) models.Metadata {
	if len(raw) == 0 || string(raw) == "null" {
		return models.Metadata{}
	}
	var meta models.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		logger.Warn("Discarding malformed reply metadata", zap.Error(err))
		return models.Metadata{}
	}
	return meta
}
