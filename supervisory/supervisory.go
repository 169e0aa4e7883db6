// Package supervisory implements C8: turning Chatwoot label, status,
// assignee, and private-note signals into C7 bot-state transitions,
// per the documented priority order.
package supervisory

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/coralcommerce/dispatcher/botstate"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/transport"
)

const pauseTTL = 24 * time.Hour

// privateNoteCommand matches "/bot pause|resume|status", optionally
// without the leading slash, anchored to the start of the note.
var privateNoteCommand = regexp.MustCompile(`^\s*/?bot\s+(pause|resume|status)\b`)

type Handler struct {
	gate *botstate.Gate
	reg  *transport.Registry
}

func New(gate *botstate.Gate, reg *transport.Registry) *Handler {
	return &Handler{gate: gate, reg: reg}
}

// Handle evaluates the signals in priority order: only the
// highest-priority matching rule for a given event acts.
func (h *Handler) Handle(ctx context.Context, ev models.SupervisoryEvent) {
	labels := normalizeLabels(ev.Labels)

	switch {
	case labels["bot-active"]:
		h.gate.ForceActivate(ev.UserID)

	case labels["bot-paused"]:
		h.gate.PauseFromSignal(ev.UserID, "tag", "agent", pauseTTL)

	case ev.Status == "resolved" || ev.Status == "closed":
		h.gate.PauseFromSignal(ev.UserID, "conversation-resolved", "system", pauseTTL)

	case ev.Status == "open" || ev.Status == "pending":
		if state, ok := h.gate.Status(ev.UserID); ok && state.Paused && state.Reason == "conversation-resolved" {
			h.gate.Resume(ev.UserID)
		}

	case ev.AssigneeID != "":
		h.gate.PauseFromSignal(ev.UserID, "agent-assigned", "system", pauseTTL)

	case ev.AssigneeID == "" && ev.ConversationID != "":
		if state, ok := h.gate.Status(ev.UserID); ok && state.Paused && state.Reason == "agent-assigned" {
			h.gate.Resume(ev.UserID)
		}
	}

	if ev.PrivateNote != "" {
		h.handlePrivateNote(ctx, ev)
	}
}

func (h *Handler) handlePrivateNote(ctx context.Context, ev models.SupervisoryEvent) {
	m := privateNoteCommand.FindStringSubmatch(ev.PrivateNote)
	if m == nil {
		return
	}

	switch m[1] {
	case "pause":
		h.gate.PauseFromSignal(ev.UserID, "operator-command", "agent", pauseTTL)
		h.courtesy(ctx, ev.UserID, "Un agente humano tomó la conversación. El bot queda en pausa.")
	case "resume":
		h.gate.Resume(ev.UserID)
		h.courtesy(ctx, ev.UserID, "El bot vuelve a responder esta conversación.")
	case "status":
		// status is informational only; no state change, no user-facing message
	}
}

func (h *Handler) courtesy(ctx context.Context, userID, text string) {
	_ = h.reg.SendOutbound(ctx, models.SourceChatwoot, userID, text)
}

func normalizeLabels(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return set
}
