package models

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one turn in the conversation log
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata,omitzero"`
}

// Metadata is the structured payload attached to assistant turns.
// It is validated at the transport boundary; a zero Metadata means the
// backend attached nothing.
type Metadata struct {
	Emails      []EmailRecord `json:"emails,omitempty"`
	ActionTaken string        `json:"action_taken,omitempty"`
}

// IsZero reports whether the metadata carries no payload at all.
func (m Metadata) IsZero() bool {
	return len(m.Emails) == 0 && m.ActionTaken == ""
}

// EmailRecord is a summarized email returned by the assistant. The client
// treats it as display data; the ID is the handle for follow-up commands.
type EmailRecord struct {
	ID      string   `json:"id"`
	From    string   `json:"from"`
	Subject string   `json:"subject"`
	Date    string   `json:"date"`
	Snippet string   `json:"snippet"`
	Summary string   `json:"summary"`
	Labels  []string `json:"labels,omitempty"`
}

// UnreadLabel marks an email the user has not opened yet.
const UnreadLabel = "UNREAD"

// Unread reports whether the record carries the unread label.
func (e EmailRecord) Unread() bool {
	for _, l := range e.Labels {
		if l == UnreadLabel {
			return true
		}
	}
	return false
}

// User is the authenticated identity returned by the auth flow
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	GoogleID  string    `json:"google_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionKind enumerates the user-triggered actions that require confirmation.
type ActionKind string

const (
	ActionDelete    ActionKind = "delete"
	ActionSendReply ActionKind = "send-reply"
)

// PendingAction is a staged destructive command awaiting explicit
// confirmation. At most one exists at a time; a new trigger replaces it.
type PendingAction struct {
	Kind   ActionKind
	Target string // email id for delete; unused for send-reply
	Prompt string
}
