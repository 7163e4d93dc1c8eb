package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/api"
	"github.com/arenvik/mailpilot/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, 5*time.Second, zap.NewNop())
}

func TestSendMessagePostsHistoryAndParsesReply(t *testing.T) {
	var gotBody struct {
		Message             string `json:"message"`
		ConversationHistory []struct {
			Role     string           `json:"role"`
			Content  string           `json:"content"`
			Metadata *models.Metadata `json:"metadata"`
		} `json:"conversation_history"`
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/message" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "u1" {
			t.Errorf("wrong user_id: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message":      "Here are your 5 most recent emails",
			"action_taken": "fetch_emails",
			"metadata": map[string]any{
				"emails": []map[string]any{
					{"id": "a1", "from": "x@y.z", "subject": "hi", "labels": []string{"UNREAD"}},
				},
				// Unknown keys must be dropped at this boundary.
				"count": 1,
				"query": "",
			},
		})
	}))

	meta := models.Metadata{ActionTaken: "fetch_emails"}
	history := []api.HistoryItem{
		{Role: models.RoleUser, Content: "hi", Metadata: nil},
		{Role: models.RoleAssistant, Content: "hello", Metadata: &meta},
	}
	reply, err := client.SendMessage(context.Background(), "u1", "Show me my last 5 emails", history)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if reply.Text != "Here are your 5 most recent emails" {
		t.Errorf("wrong reply text: %q", reply.Text)
	}
	if len(reply.Metadata.Emails) != 1 || reply.Metadata.Emails[0].ID != "a1" {
		t.Errorf("emails not parsed: %+v", reply.Metadata)
	}
	if !reply.Metadata.Emails[0].Unread() {
		t.Error("UNREAD label lost")
	}
	if reply.Metadata.ActionTaken != "fetch_emails" {
		t.Errorf("action_taken not folded in: %q", reply.Metadata.ActionTaken)
	}

	if gotBody.Message != "Show me my last 5 emails" {
		t.Errorf("wrong message field: %q", gotBody.Message)
	}
	if len(gotBody.ConversationHistory) != 2 {
		t.Fatalf("history not replayed, got %d items", len(gotBody.ConversationHistory))
	}
	if gotBody.ConversationHistory[0].Metadata != nil {
		t.Error("metadata-less turn should travel as null")
	}
	if gotBody.ConversationHistory[1].Metadata == nil {
		t.Error("assistant metadata lost in replay")
	}
}

func TestSendMessageSurfacesBackendDetail(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"detail present", http.StatusBadGateway, `{"detail":"upstream timeout"}`, "upstream timeout"},
		{"detail absent", http.StatusInternalServerError, `{}`, "Request failed with status 500"},
		{"body not json", http.StatusBadGateway, "boom", "Request failed with status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := client.SendMessage(context.Background(), "u1", "hi", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			var chatErr *api.ChatError
			if !errors.As(err, &chatErr) {
				t.Fatalf("expected ChatError, got %T", err)
			}
			if chatErr.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", chatErr.Detail, tt.wantDetail)
			}
		})
	}
}

func TestSendMessageTimeoutIsChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"message":"too late"}`))
	}))
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, 50*time.Millisecond, zap.NewNop())

	_, err := client.SendMessage(context.Background(), "u1", "hi", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var chatErr *api.ChatError
	if !errors.As(err, &chatErr) {
		t.Fatalf("expected ChatError, got %T", err)
	}
	if !strings.Contains(chatErr.Detail, "context deadline exceeded") {
		t.Errorf("detail should name the deadline, got %q", chatErr.Detail)
	}
}

func TestSendMessageCancelledContextIsChatError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SendMessage(ctx, "u1", "hi", nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	var chatErr *api.ChatError
	if !errors.As(err, &chatErr) {
		t.Fatalf("expected ChatError, got %T", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("cancellation cause lost in wrapping")
	}
}

func TestExchangeCode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/callback" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("code"); got != "code-123" {
			t.Errorf("wrong code: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "u1",
			"user": map[string]any{
				"id":         "u1",
				"email":      "u@example.com",
				"google_id":  "g1",
				"created_at": "2024-06-01T12:00:00Z",
			},
		})
	}))

	user, err := client.ExchangeCode(context.Background(), "code-123")
	if err != nil {
		t.Fatalf("ExchangeCode failed: %v", err)
	}
	if user.ID != "u1" || user.Email != "u@example.com" || user.GoogleID != "g1" {
		t.Errorf("user not parsed: %+v", user)
	}
}

func TestExchangeCodeFailureIsAuthError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Invalid token: bad code"}`))
	}))

	_, err := client.ExchangeCode(context.Background(), "bad")
	var authErr *api.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T", err)
	}
	if authErr.Detail != "Invalid token: bad code" {
		t.Errorf("detail = %q", authErr.Detail)
	}
}

func TestLoginURL(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"authorization_url": "https://accounts.example.com/o/oauth2/auth?x=1",
			"state":             "st-1",
		})
	}))

	url, state, err := client.LoginURL(context.Background())
	if err != nil {
		t.Fatalf("LoginURL failed: %v", err)
	}
	if url != "https://accounts.example.com/o/oauth2/auth?x=1" || state != "st-1" {
		t.Errorf("got %q / %q", url, state)
	}
}

func TestHistoryMapsEntriesInOrder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "25" {
			t.Errorf("wrong limit: %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id": "m1", "user_id": "u1", "role": "user",
				"content": "hi", "metadata": nil,
				"created_at": "2024-06-01T12:00:00Z",
			},
			{
				"id": "m2", "user_id": "u1", "role": "assistant",
				"content":    "hello",
				"metadata":   map[string]any{"action_taken": "general"},
				"created_at": "2024-06-01T12:00:05Z",
			},
		})
	}))

	msgs, err := client.History(context.Background(), "u1", 25)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[0].Role != models.RoleUser || !msgs[0].Metadata.IsZero() {
		t.Errorf("entry 0 wrong: %+v", msgs[0])
	}
	if msgs[1].Metadata.ActionTaken != "general" {
		t.Errorf("entry 1 metadata wrong: %+v", msgs[1].Metadata)
	}
	if !msgs[1].Timestamp.After(msgs[0].Timestamp) {
		t.Error("timestamps not mapped from created_at")
	}
}
