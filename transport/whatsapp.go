package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coralcommerce/dispatcher/errs"
	"github.com/coralcommerce/dispatcher/models"
)

// WhatsApp adapts an Evolution-API-style gateway: outbound goes to
// POST {base}/message/sendText/{instance} with an apikey header;
// inbound webhooks carry the remoteJid/conversation shape below.
type WhatsApp struct {
	BaseURL  string
	Instance string
	APIKey   string
	client   *http.Client
}

func NewWhatsApp(baseURL, instance, apiKey string) *WhatsApp {
	return &WhatsApp{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Instance: instance,
		APIKey:   apiKey,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

func (w *WhatsApp) Source() string { return models.SourceWhatsApp }

type waInboundPayload struct {
	Data struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
		} `json:"key"`
		Message struct {
			Conversation string `json:"conversation"`
		} `json:"message"`
	} `json:"data"`
}

// ParseWebhook maps the gateway's inbound shape to InboundMessage. The
// user id is the digits preceding "@" in the remoteJid.
func (w *WhatsApp) ParseWebhook(raw []byte) (Envelope, error) {
	var payload waInboundPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Envelope{}, errs.Wrap(errs.BadRequest, "decode whatsapp webhook", err)
	}

	userID := jidToUserID(payload.Data.Key.RemoteJid)
	text := strings.TrimSpace(payload.Data.Message.Conversation)

	if userID == "" || text == "" {
		return Envelope{Kind: KindIgnored, IgnoreReason: "empty text or missing userId"}, nil
	}

	return Envelope{
		Kind: KindInbound,
		Message: models.InboundMessage{
			UserID:    userID,
			Text:      text,
			Source:    models.SourceWhatsApp,
			ArrivedAt: time.Now().UTC(),
		},
	}, nil
}

func jidToUserID(jid string) string {
	at := strings.IndexByte(jid, '@')
	if at < 0 {
		return strings.TrimSpace(jid)
	}
	return strings.TrimSpace(jid[:at])
}

type waOutboundPayload struct {
	Number      string `json:"number"`
	TextMessage struct {
		Text string `json:"text"`
	} `json:"textMessage"`
}

func (w *WhatsApp) SendOutbound(ctx context.Context, userID, text string) error {
	if w.BaseURL == "" || w.Instance == "" {
		return errs.New(errs.PermanentTransport, "whatsapp gateway not configured")
	}

	url := w.BaseURL + "/message/sendText/" + w.Instance
	body := waOutboundPayload{Number: userID}
	body.TextMessage.Text = text
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.BadRequest, "encode whatsapp outbound", err)
	}

	return doWithRetry(ctx, w.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", w.APIKey)
		return req, nil
	})
}
