// Package agent defines the boundary to the AI runtime. The inference
// call itself lives outside this module; this package only exposes
// the narrow capability interfaces the worker pool needs to invoke it
// and a deterministic stub for tests and /test/message.
package agent

import (
	"context"
	"time"

	"github.com/coralcommerce/dispatcher/errs"
	"github.com/coralcommerce/dispatcher/models"
)

// Runtime is the single synchronous entry point into the AI agent.
// Implementations must honor ctx's deadline (default 30s, set by the
// caller) and classify failures into errs.TransientAgent/PermanentAgent.
type Runtime interface {
	InferReply(ctx context.Context, userID string, ctxSnapshot models.ConversationContext, text string) (reply string, err error)
}

// Stub is a deterministic Runtime used by /test/message and package
// tests: it echoes a canned reply referencing the input, with no
// external calls.
type Stub struct {
	Reply string
}

func NewStub() *Stub { return &Stub{Reply: "Gracias por tu mensaje, en breve te respondemos."} }

func (s *Stub) InferReply(ctx context.Context, userID string, cc models.ConversationContext, text string) (string, error) {
	select {
	case <-ctx.Done():
		return "", errs.Wrap(errs.TransientAgent, "inference aborted", ctx.Err())
	default:
	}
	if text == "" {
		return "", errs.New(errs.PermanentAgent, "empty input text")
	}
	return s.Reply, nil
}

// Timeout is the default deadline InferReply callers apply.
const Timeout = 30 * time.Second
