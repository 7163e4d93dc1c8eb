package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/models"
)

// Gate enforces confirm-before-execute for actions with irreversible backend
// effects. Plain conversational messages bypass it entirely; which actions
// need gating is the caller's decision, bound to UI commands rather than
// inferred from message text.
//
// The gate is a two-state machine: Idle when pending is nil,
// AwaitingConfirmation otherwise. There is no queue; a new trigger while
// awaiting replaces the previous pending action.
type Gate struct {
	controller *Controller
	logger     *zap.Logger

	mu      sync.Mutex
	pending *models.PendingAction
}

func NewGate(controller *Controller, logger *zap.Logger) *Gate {
	return &Gate{
		controller: controller,
		logger:     logger,
	}
}

// Trigger stages an action for confirmation. Last trigger wins.
func (g *Gate) Trigger(kind models.ActionKind, target string) {
	action := &models.PendingAction{
		Kind:   kind,
		Target: target,
	}
	switch kind {
	case models.ActionDelete:
		action.Prompt = "Are you sure you want to delete this email? This action cannot be undone."
	case models.ActionSendReply:
		action.Prompt = "Send this reply? It will be delivered immediately."
	default:
		g.logger.Warn("Ignoring unknown action kind", zap.String("kind", string(kind)))
		return
	}

	g.mu.Lock()
	g.pending = action
	g.mu.Unlock()
}

// Confirm converts the pending action into exactly one message send and
// returns the gate to idle. With nothing pending it does nothing.
func (g *Gate) Confirm(ctx context.Context) {
	g.mu.Lock()
	action := g.pending
	g.pending = nil
	g.mu.Unlock()

	if action == nil {
		return
	}

	var text string
	switch action.Kind {
	case models.ActionDelete:
		text = fmt.Sprintf("Yes, delete email %s", action.Target)
	case models.ActionSendReply:
		text = "Yes, send it"
	}

	g.logger.Info("Action confirmed",
		zap.String("kind", string(action.Kind)),
		zap.String("target", action.Target))
	g.controller.SendMessage(ctx, text)
}

// Cancel discards the pending action with no backend call. Cancelling with
// nothing pending is a harmless no-op.
func (g *Gate) Cancel() {
	g.mu.Lock()
	g.pending = nil
	g.mu.Unlock()
}

// Pending returns a copy of the staged action, or nil when idle.
func (g *Gate) Pending() *models.PendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return nil
	}
	a := *g.pending
	return &a
}
