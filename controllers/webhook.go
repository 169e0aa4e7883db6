package controllers

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coralcommerce/dispatcher/app"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/ratelimit"
	"github.com/coralcommerce/dispatcher/transport"
)

// busyReply is sent instead of queueing when the backlog has reached the
// soft cap — the same "still here, just slower" courtesy tone the
// follow-up templates use, rather than a bare error.
const busyReply = "We're getting a lot of messages right now — I'll get back to you as soon as I can."

// WebhookWhatsApp handles POST /webhook/whatsapp: parse, admit, and
// coalesce. A 200 is always returned once the payload is parsed, since
// the transport only cares that delivery succeeded, not what the
// dispatcher decided to do with it.
func WebhookWhatsApp(c *gin.Context) {
	handleWebhook(c, func(a *app.App) transport.Adapter {
		adapter, _ := a.Transport.Get(models.SourceWhatsApp)
		return adapter
	})
}

// WebhookChatwoot handles POST /webhook/chatwoot: the same intake path,
// plus C8's supervisory branch for label/status/assignee/private-note
// events.
func WebhookChatwoot(c *gin.Context) {
	handleWebhook(c, func(a *app.App) transport.Adapter {
		adapter, _ := a.Transport.Get(models.SourceChatwoot)
		return adapter
	})
}

func handleWebhook(c *gin.Context, resolve func(*app.App) transport.Adapter) {
	a := app.FromContext(c)
	if a == nil {
		RespondError(c, "app not configured on context", http.StatusInternalServerError)
		return
	}

	adapter := resolve(a)
	if adapter == nil {
		RespondError(c, "transport not configured", http.StatusServiceUnavailable)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, "failed to read body", http.StatusBadRequest)
		return
	}

	envelope, err := adapter.ParseWebhook(raw)
	if err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	switch envelope.Kind {
	case transport.KindSupervisory:
		a.Supervisory.Handle(c.Request.Context(), envelope.Supervisory)
	case transport.KindInbound:
		admitInbound(a, c.Request.Context(), c.ClientIP(), envelope.Message)
	case transport.KindIgnored:
		// nothing to do; envelope.IgnoreReason is for logs, not the caller
	}

	RespondSuccess(c, gin.H{"status": "received"})
}

// admitInbound enforces the backlog soft cap, runs C2's dedup/rate
// gate, cancels any pending follow-up (the reply-reset invariant), and
// hands admitted messages to C3's coalescing buffer.
func admitInbound(a *app.App, ctx context.Context, ip string, msg models.InboundMessage) {
	if a.Config.QueueSoftCap > 0 && a.Queue.Depth() >= a.Config.QueueSoftCap {
		if err := a.Transport.SendOutbound(ctx, msg.Source, msg.UserID, busyReply); err != nil {
			log.Printf("webhook: send busy reply to %s: %v", msg.UserID, err)
		}
		return
	}

	cc, _ := a.Store.Get(msg.UserID)

	decision := a.Limiter.Admit(msg, ip, cc.VIP)
	if decision != ratelimit.Admit {
		return
	}

	if err := a.Followup.CancelPending(msg.UserID); err != nil {
		// best-effort: OnUserActivity cancels pending follow-ups again
		// after the next successful reply; not fatal to this request
		_ = err
	}

	a.Burst.Enqueue(msg)
}
