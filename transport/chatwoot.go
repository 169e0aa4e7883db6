package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coralcommerce/dispatcher/errs"
	"github.com/coralcommerce/dispatcher/models"
)

// Chatwoot adapts the helpdesk's webhook events and outgoing message
// API. Outbound sends need a conversation id, which this adapter
// resolves from the userId "chatwoot_<conversationId>" convention
// ParseWebhook establishes on inbound.
type Chatwoot struct {
	BaseURL     string
	AccountID   string
	AccessToken string
	client      *http.Client
}

func NewChatwoot(baseURL, accountID, accessToken string) *Chatwoot {
	return &Chatwoot{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccountID:   accountID,
		AccessToken: accessToken,
		client:      &http.Client{Timeout: sendTimeout},
	}
}

func (c *Chatwoot) Source() string { return models.SourceChatwoot }

const userIDPrefix = "chatwoot_"

type chatwootWebhook struct {
	Event      string `json:"event"`
	MessageType string `json:"message_type"`
	Content    string `json:"content"`
	Sender     struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	} `json:"sender"`
	Conversation struct {
		ID               int64    `json:"id"`
		Status           string   `json:"status"`
		Labels           []string `json:"labels"`
		ChangedAttributes []struct {
			Labels *struct {
				CurrentValue  []string `json:"current_value"`
				PreviousValue []string `json:"previous_value"`
			} `json:"labels"`
			AssigneeID *struct {
				CurrentValue *int64 `json:"current_value"`
			} `json:"assignee_id"`
			Status *struct {
				CurrentValue string `json:"current_value"`
			} `json:"status"`
		} `json:"changed_attributes"`
		Meta struct {
			Assignee *struct {
				ID int64 `json:"id"`
			} `json:"assignee"`
		} `json:"meta"`
	} `json:"conversation"`
	Private bool `json:"private"`
}

// ParseWebhook handles both message_created and conversation_updated
// events; anything else is ignored.
func (c *Chatwoot) ParseWebhook(raw []byte) (Envelope, error) {
	var w chatwootWebhook
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, errs.Wrap(errs.BadRequest, "decode chatwoot webhook", err)
	}

	switch w.Event {
	case "message_created":
		return c.parseMessageCreated(w)
	case "conversation_updated":
		return c.parseConversationUpdated(w)
	default:
		return Envelope{Kind: KindIgnored, IgnoreReason: "unhandled event: " + w.Event}, nil
	}
}

func (c *Chatwoot) parseMessageCreated(w chatwootWebhook) (Envelope, error) {
	if w.Conversation.ID == 0 {
		return Envelope{Kind: KindIgnored, IgnoreReason: "missing conversation id"}, nil
	}
	content := strings.TrimSpace(w.Content)
	convIDStr := strconv.FormatInt(w.Conversation.ID, 10)

	// A private note is a supervisory command, not a user message,
	// regardless of message_type/sender.
	if w.Private {
		return Envelope{
			Kind: KindSupervisory,
			Supervisory: models.SupervisoryEvent{
				UserID:         userIDPrefix + convIDStr,
				ConversationID: convIDStr,
				PrivateNote:    content,
				OccurredAt:     time.Now().UTC(),
			},
		}, nil
	}

	if w.MessageType != "incoming" || w.Sender.Type != "contact" || content == "" {
		return Envelope{Kind: KindIgnored, IgnoreReason: "not an incoming contact message"}, nil
	}

	return Envelope{
		Kind: KindInbound,
		Message: models.InboundMessage{
			UserID:         userIDPrefix + convIDStr,
			Text:           content,
			Source:         models.SourceChatwoot,
			ConversationID: convIDStr,
			ArrivedAt:      time.Now().UTC(),
		},
	}, nil
}

func (c *Chatwoot) parseConversationUpdated(w chatwootWebhook) (Envelope, error) {
	if w.Conversation.ID == 0 {
		return Envelope{Kind: KindIgnored, IgnoreReason: "missing conversation id"}, nil
	}
	convIDStr := strconv.FormatInt(w.Conversation.ID, 10)

	ev := models.SupervisoryEvent{
		UserID:         userIDPrefix + convIDStr,
		ConversationID: convIDStr,
		Status:         w.Conversation.Status,
		OccurredAt:     time.Now().UTC(),
	}

	labels := map[string]struct{}{}
	for _, l := range w.Conversation.Labels {
		labels[l] = struct{}{}
	}
	for _, ca := range w.Conversation.ChangedAttributes {
		if ca.Labels != nil {
			for _, l := range ca.Labels.CurrentValue {
				labels[l] = struct{}{}
			}
		}
		if ca.Status != nil && ca.Status.CurrentValue != "" {
			ev.Status = ca.Status.CurrentValue
		}
		if ca.AssigneeID != nil && ca.AssigneeID.CurrentValue != nil {
			ev.AssigneeID = strconv.FormatInt(*ca.AssigneeID.CurrentValue, 10)
		}
	}
	for l := range labels {
		ev.Labels = append(ev.Labels, l)
	}

	if ev.AssigneeID == "" && w.Conversation.Meta.Assignee != nil {
		ev.AssigneeID = strconv.FormatInt(w.Conversation.Meta.Assignee.ID, 10)
	}

	return Envelope{Kind: KindSupervisory, Supervisory: ev}, nil
}

type chatwootOutboundPayload struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// SendOutbound expects userID in the "chatwoot_<conversationId>" shape
// ParseWebhook produces.
func (c *Chatwoot) SendOutbound(ctx context.Context, userID, text string) error {
	if c.BaseURL == "" || c.AccountID == "" {
		return errs.New(errs.PermanentTransport, "chatwoot not configured")
	}
	conversationID := strings.TrimPrefix(userID, userIDPrefix)
	if conversationID == userID {
		return errs.New(errs.PermanentTransport, "userId is not a chatwoot conversation id")
	}

	url := c.BaseURL + "/api/v1/accounts/" + c.AccountID + "/conversations/" + conversationID + "/messages"
	payload, err := json.Marshal(chatwootOutboundPayload{Content: text, MessageType: "outgoing"})
	if err != nil {
		return errs.Wrap(errs.BadRequest, "encode chatwoot outbound", err)
	}

	return doWithRetry(ctx, c.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api_access_token", c.AccessToken)
		return req, nil
	})
}
