package transport

import (
	"context"
	"sync"

	"github.com/coralcommerce/dispatcher/models"
)

// Test is the in-memory adapter backing POST /test/message: there is
// no real wire format, so ParseWebhook is unused and SendOutbound just
// records the reply for the synchronous handler to read back.
type Test struct {
	mu       sync.Mutex
	replies  map[string]string
}

func NewTest() *Test {
	return &Test{replies: make(map[string]string)}
}

func (t *Test) Source() string { return models.SourceTest }

func (t *Test) ParseWebhook(raw []byte) (Envelope, error) {
	return Envelope{Kind: KindIgnored, IgnoreReason: "test transport has no webhook"}, nil
}

func (t *Test) SendOutbound(ctx context.Context, userID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[userID] = text
	return nil
}

// TakeReply returns and clears the last reply recorded for userID, for
// the synchronous /test/message handler to read back.
func (t *Test) TakeReply(userID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reply, ok := t.replies[userID]
	delete(t.replies, userID)
	return reply, ok
}
