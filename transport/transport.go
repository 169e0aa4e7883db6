// Package transport adapts the two external chat surfaces — a
// WhatsApp gateway and Chatwoot — into the dispatcher's canonical
// InboundMessage/SupervisoryEvent shapes, and carries outbound replies
// back out through the same surfaces.
package transport

import (
	"context"

	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/telemetry"
)

// Kind discriminates the tagged-variant Envelope a webhook handler
// produces: a payload resolves to either an inbound message or a
// supervisory event, never both.
type Kind int

const (
	KindInbound Kind = iota
	KindSupervisory
	KindIgnored
)

// Envelope is what ParseWebhook hands back to the caller:
// exactly one of Message/Supervisory is populated, selected by Kind.
type Envelope struct {
	Kind        Kind
	Message     models.InboundMessage
	Supervisory models.SupervisoryEvent
	IgnoreReason string
}

// Adapter is the capability every transport exposes to the rest of the
// dispatcher. Each concrete adapter (WhatsApp, Chatwoot, Test) parses
// its own wire format into the shared Envelope and sends outbound text
// back out through its own REST API.
type Adapter interface {
	Source() string
	ParseWebhook(raw []byte) (Envelope, error)
	SendOutbound(ctx context.Context, userID, text string) error
}

// Registry resolves a transport adapter by its Source() name, used by
// C5/C9 to send outbound replies without knowing which concrete
// transport originated a conversation.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Source()] = a
	}
	return r
}

func (r *Registry) Get(source string) (Adapter, bool) {
	a, ok := r.adapters[source]
	return a, ok
}

// SendOutbound dispatches through whichever adapter owns source.
func (r *Registry) SendOutbound(ctx context.Context, source, userID, text string) error {
	ctx, span := telemetry.Tracer().Start(ctx, "transport.SendOutbound")
	defer span.End()

	a, ok := r.Get(source)
	if !ok {
		return nil
	}
	return a.SendOutbound(ctx, userID, text)
}
