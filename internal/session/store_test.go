package session_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/models"
	"github.com/arenvik/mailpilot/internal/session"
)

func newMemStore() *session.Store {
	return session.NewStore(nil, zap.NewNop())
}

func TestAppendPreservesOrderAndAssignsTimestamps(t *testing.T) {
	store := newMemStore()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		store.AppendMessage(models.Message{Role: models.RoleUser, Content: c})
	}

	msgs := store.Messages()
	if len(msgs) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(msgs))
	}
	for i, msg := range msgs {
		if msg.Content != contents[i] {
			t.Errorf("message %d: got %q, want %q", i, msg.Content, contents[i])
		}
		if msg.Timestamp.IsZero() {
			t.Errorf("message %d: timestamp not assigned", i)
		}
		if msg.ID == "" {
			t.Errorf("message %d: id not assigned", i)
		}
		if i > 0 && msg.Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("message %d: timestamp decreased", i)
		}
	}
}

func TestAppendClampsBackwardsTimestamps(t *testing.T) {
	store := newMemStore()

	now := time.Now()
	store.AppendMessage(models.Message{Role: models.RoleUser, Content: "a", Timestamp: now})
	store.AppendMessage(models.Message{Role: models.RoleUser, Content: "b", Timestamp: now.Add(-time.Hour)})

	msgs := store.Messages()
	if msgs[1].Timestamp.Before(msgs[0].Timestamp) {
		t.Fatalf("second timestamp %v is before first %v", msgs[1].Timestamp, msgs[0].Timestamp)
	}
}

func TestSetUserNilKeepsMessages(t *testing.T) {
	store := newMemStore()
	store.SetUser(&models.User{ID: "u1", Email: "u@example.com"})
	store.AppendMessage(models.Message{Role: models.RoleUser, Content: "hello"})

	store.SetUser(nil)

	if store.User() != nil {
		t.Fatal("expected nil user")
	}
	if got := len(store.Messages()); got != 1 {
		t.Fatalf("expected messages to survive SetUser(nil), got %d", got)
	}
}

func TestClearMessages(t *testing.T) {
	store := newMemStore()
	store.AppendMessage(models.Message{Role: models.RoleUser, Content: "hello"})
	store.AppendMessage(models.Message{Role: models.RoleAssistant, Content: "hi"})

	store.ClearMessages()

	if got := len(store.Messages()); got != 0 {
		t.Fatalf("expected empty log, got %d messages", got)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	logger := zap.NewNop()

	first := session.NewStore(session.NewStateFile(path), logger)
	user := &models.User{
		ID:        "u1",
		Email:     "u@example.com",
		GoogleID:  "g1",
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	first.SetUser(user)
	first.AppendMessage(models.Message{Role: models.RoleUser, Content: "show emails"})
	first.AppendMessage(models.Message{
		Role:    models.RoleAssistant,
		Content: "here you go",
		Metadata: models.Metadata{
			ActionTaken: "fetch_emails",
			Emails:      []models.EmailRecord{{ID: "1", Subject: "hi", Labels: []string{"UNREAD"}}},
		},
	})
	// Ephemeral flags must not leak into the blob.
	first.SetLoading(true)
	first.SetError("transient")

	second := session.NewStore(session.NewStateFile(path), logger)

	got := second.User()
	if got == nil || got.ID != user.ID || got.Email != user.Email || got.GoogleID != user.GoogleID {
		t.Fatalf("user did not round-trip: %+v", got)
	}
	want := first.Messages()
	msgs := second.Messages()
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i := range msgs {
		if msgs[i].Content != want[i].Content || msgs[i].Role != want[i].Role {
			t.Errorf("message %d mismatch: %+v vs %+v", i, msgs[i], want[i])
		}
		if !msgs[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("message %d timestamp mismatch", i)
		}
	}
	if msgs[1].Metadata.ActionTaken != "fetch_emails" || len(msgs[1].Metadata.Emails) != 1 {
		t.Errorf("metadata did not round-trip: %+v", msgs[1].Metadata)
	}
	if second.Loading() {
		t.Error("loading flag should reset to false after rehydration")
	}
	if second.Err() != "" {
		t.Errorf("error flag should reset after rehydration, got %q", second.Err())
	}
}

func TestHydrationFallsBackToEmptyState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, path string)
	}{
		{"missing file", func(t *testing.T, path string) {}},
		{"unparsable file", func(t *testing.T, path string) {
			if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
				t.Fatal(err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			tt.setup(t, path)

			store := session.NewStore(session.NewStateFile(path), zap.NewNop())
			if store.User() != nil {
				t.Error("expected nil user")
			}
			if len(store.Messages()) != 0 {
				t.Error("expected empty log")
			}
		})
	}
}

func TestStateFileOmitsFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := session.NewStore(session.NewStateFile(path), zap.NewNop())
	store.SetLoading(true)
	store.SetError("boom")
	store.AppendMessage(models.Message{Role: models.RoleUser, Content: "x"})

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	blob := string(b)
	// The single turn carries no metadata, so the blob must omit the key
	// entirely rather than persist an empty object.
	for _, forbidden := range []string{`"loading"`, `"error"`, `"metadata"`} {
		if strings.Contains(blob, forbidden) {
			t.Errorf("state file must not contain %s field:\n%s", forbidden, blob)
		}
	}
}
