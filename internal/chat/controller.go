package chat

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/api"
	"github.com/arenvik/mailpilot/internal/models"
	"github.com/arenvik/mailpilot/internal/session"
)

// Transport is the backend surface the controller drives. *api.Client
// satisfies it; tests substitute fakes.
type Transport interface {
	SendMessage(ctx context.Context, userID, text string, history []api.HistoryItem) (*api.ChatReply, error)
	History(ctx context.Context, userID string, limit int) ([]models.Message, error)
}

// Controller executes send/receive cycles against the backend and folds the
// results into the session store. At most one send is in flight at a time.
type Controller struct {
	store        *session.Store
	transport    Transport
	historyLimit int
	logger       *zap.Logger

	mu      sync.Mutex
	sending bool
}

func NewController(store *session.Store, transport Transport, historyLimit int, logger *zap.Logger) *Controller {
	return &Controller{
		store:        store,
		transport:    transport,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Sending reports whether a send cycle is in flight.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sending
}

// SendMessage runs exactly one send/receive cycle. Blank input, a missing
// user, and an in-flight send are silent no-ops. The user's message is
// appended optimistically and never rolled back; a transport failure becomes
// a visible assistant turn instead.
func (c *Controller) SendMessage(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	user := c.store.User()
	if user == nil {
		return
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return
	}
	c.sending = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	c.store.SetError("")

	// The backend is stateless between calls; the projection of everything
	// said so far, in order, is its only memory. Captured before the
	// optimistic append so the new utterance travels in the message field.
	history := projectHistory(c.store.Messages())

	c.store.AppendMessage(models.Message{
		Role:    models.RoleUser,
		Content: text,
	})

	reply, err := c.transport.SendMessage(ctx, user.ID, text, history)
	if err != nil {
		detail := err.Error()
		c.logger.Error("Send message failed",
			zap.Error(err),
			zap.String("user_id", user.ID))
		c.store.SetError(detail)
		c.store.AppendMessage(models.Message{
			Role:    models.RoleAssistant,
			Content: "Error: " + detail,
		})
		return
	}

	c.store.AppendMessage(models.Message{
		Role:     models.RoleAssistant,
		Content:  reply.Text,
		Metadata: reply.Metadata,
	})
}

// LoadHistory fetches the backend's durable chat log and appends every
// returned message in order. It neither merges nor dedupes, so callers
// invoke it only against an empty local log (page-reload recovery when the
// persisted state is absent).
func (c *Controller) LoadHistory(ctx context.Context) {
	user := c.store.User()
	if user == nil {
		return
	}

	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	msgs, err := c.transport.History(ctx, user.ID, c.historyLimit)
	if err != nil {
		c.logger.Error("Failed to load chat history",
			zap.Error(err),
			zap.String("user_id", user.ID))
		c.store.SetError(err.Error())
		return
	}

	for _, msg := range msgs {
		c.store.AppendMessage(msg)
	}
}

// Logout resets the whole session: identity, message log, and error flag.
// The UI falls back to its pre-conversation state.
func (c *Controller) Logout() {
	c.store.SetUser(nil)
	c.store.ClearMessages()
	c.store.SetError("")
	c.logger.Info("Session cleared")
}

// projectHistory maps the local log onto the wire history shape. Turns
// without metadata travel as null, per the contract.
func projectHistory(msgs []models.Message) []api.HistoryItem {
	items := make([]api.HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		item := api.HistoryItem{
			Role:    m.Role,
			Content: m.Content,
		}
		if !m.Metadata.IsZero() {
			meta := m.Metadata
			item.Metadata = &meta
		}
		items = append(items, item)
	}
	return items
}
