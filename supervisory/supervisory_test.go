package supervisory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralcommerce/dispatcher/botstate"
	"github.com/coralcommerce/dispatcher/convstore"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/transport"
)

// fakeChatwoot stands in for a real Chatwoot adapter so courtesy replies
// can be asserted on without a network round trip.
type fakeChatwoot struct {
	mu      sync.Mutex
	replies map[string]string
}

func (f *fakeChatwoot) Source() string { return models.SourceChatwoot }

func (f *fakeChatwoot) ParseWebhook(raw []byte) (transport.Envelope, error) {
	return transport.Envelope{Kind: transport.KindIgnored}, nil
}

func (f *fakeChatwoot) SendOutbound(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[userID] = text
	return nil
}

func (f *fakeChatwoot) TakeReply(userID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reply, ok := f.replies[userID]
	delete(f.replies, userID)
	return reply, ok
}

func newHandler() (*Handler, *botstate.Gate, *fakeChatwoot) {
	gate := botstate.New(convstore.NewInMemoryCache(), nil)
	fake := &fakeChatwoot{replies: make(map[string]string)}
	reg := transport.NewRegistry(fake)
	return New(gate, reg), gate, fake
}

func TestHandleBotPausedLabelPauses(t *testing.T) {
	h, gate, _ := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Labels: []string{"bot-paused"}})
	assert.True(t, gate.IsPaused("u1"))
}

func TestHandleBotActiveLabelOverridesPause(t *testing.T) {
	h, gate, _ := newHandler()
	gate.Pause("u1", "prior", "agent", 0)
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Labels: []string{"bot-active"}})
	assert.False(t, gate.IsPaused("u1"))
}

func TestHandleResolvedStatusPauses(t *testing.T) {
	h, gate, _ := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Status: "resolved"})
	assert.True(t, gate.IsPaused("u1"))
	s, ok := gate.Status("u1")
	require.True(t, ok)
	assert.Equal(t, "conversation-resolved", s.Reason)
}

func TestHandleReopenedResumesOnlyIfPausedForResolution(t *testing.T) {
	h, gate, _ := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Status: "resolved"})
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Status: "open"})
	assert.False(t, gate.IsPaused("u1"))
}

func TestHandleReopenedDoesNotResumeAgentAssignedPause(t *testing.T) {
	h, gate, _ := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", AssigneeID: "agent42"})
	require.True(t, gate.IsPaused("u1"))

	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Status: "open"})
	assert.True(t, gate.IsPaused("u1"))
}

func TestHandleAssigneeClearedResumesAgentAssignedPause(t *testing.T) {
	h, gate, _ := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", ConversationID: "c1", AssigneeID: "agent42"})
	require.True(t, gate.IsPaused("u1"))

	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", ConversationID: "c1", AssigneeID: ""})
	assert.False(t, gate.IsPaused("u1"))
}

func TestHandlePrivateNoteCommandPause(t *testing.T) {
	h, gate, tr := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", PrivateNote: "/bot pause"})
	assert.True(t, gate.IsPaused("u1"))

	reply, ok := tr.TakeReply("u1")
	assert.True(t, ok)
	assert.Contains(t, reply, "pausa")
}

func TestHandlePrivateNoteCommandResume(t *testing.T) {
	h, gate, tr := newHandler()
	gate.Pause("u1", "prior", "agent", 0)
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", PrivateNote: "bot resume"})
	assert.False(t, gate.IsPaused("u1"))

	_, ok := tr.TakeReply("u1")
	assert.True(t, ok)
}

func TestHandlePrivateNoteCommandStatusIsInformationalOnly(t *testing.T) {
	h, gate, tr := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", PrivateNote: "/bot status"})
	assert.False(t, gate.IsPaused("u1"))

	_, ok := tr.TakeReply("u1")
	assert.False(t, ok)
}

func TestHandlePrivateNoteUnrecognizedIsIgnored(t *testing.T) {
	h, gate, tr := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", PrivateNote: "just a note, no command"})
	assert.False(t, gate.IsPaused("u1"))
	_, ok := tr.TakeReply("u1")
	assert.False(t, ok)
}

func TestHandleBotPausedTagDoesNotDemoteForceActive(t *testing.T) {
	h, gate, _ := newHandler()
	gate.ForceActivate("u1")
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Labels: []string{"bot-paused"}})
	assert.False(t, gate.IsPaused("u1"))
}

func TestHandleResolvedStatusDoesNotDemoteForceActive(t *testing.T) {
	h, gate, _ := newHandler()
	gate.ForceActivate("u1")
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Status: "resolved"})
	assert.False(t, gate.IsPaused("u1"))
}

func TestHandleAssigneeSetDoesNotDemoteForceActive(t *testing.T) {
	h, gate, _ := newHandler()
	gate.ForceActivate("u1")
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", AssigneeID: "agent42"})
	assert.False(t, gate.IsPaused("u1"))
}

func TestHandlePrivateNotePauseDoesNotDemoteForceActive(t *testing.T) {
	h, gate, _ := newHandler()
	gate.ForceActivate("u1")
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", PrivateNote: "/bot pause"})
	assert.False(t, gate.IsPaused("u1"))
}

func TestHandleLabelPriorityBeatsStatus(t *testing.T) {
	h, gate, _ := newHandler()
	h.Handle(context.Background(), models.SupervisoryEvent{UserID: "u1", Labels: []string{"bot-active"}, Status: "resolved"})
	assert.False(t, gate.IsPaused("u1"))
}
