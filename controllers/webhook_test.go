package controllers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralcommerce/dispatcher/app"
	"github.com/coralcommerce/dispatcher/config"
	"github.com/coralcommerce/dispatcher/models"
)

func testApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(config.Configuration{
		WorkerPoolMin:       1,
		WorkerPoolMax:       1,
		QueueSoftCap:        100,
		FollowUpTZ:          "UTC",
		RateUserPerMinute:   100,
		RateIPPerMinute:     100,
		RateGlobalPerMinute: 1000,
		CoalesceWindow:      10 * time.Millisecond,
		CoalesceMaxWait:     20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return a
}

func ginContextWithApp(t *testing.T, a *app.App, method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/webhook", bytes.NewBufferString(body))
	c.Set("app", a)
	return c, w
}

func TestWebhookWhatsAppAdmitsInboundMessage(t *testing.T) {
	a := testApp(t)
	c, w := ginContextWithApp(t, a, http.MethodPost, `{
		"data": {"key": {"remoteJid": "5491122334455@s.whatsapp.net"}, "message": {"conversation": "hola"}}
	}`)

	WebhookWhatsApp(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		return a.Queue.Depth() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWebhookChatwootPrivateNoteGoesToSupervisory(t *testing.T) {
	a := testApp(t)
	c, w := ginContextWithApp(t, a, http.MethodPost, `{
		"event": "message_created",
		"message_type": "outgoing",
		"content": "/bot pause",
		"private": true,
		"sender": {"id": 5, "type": "user"},
		"conversation": {"id": 42}
	}`)

	WebhookChatwoot(c)

	assert.Equal(t, http.StatusOK, w.Code)
	state, ok := a.Gate.Status("chatwoot_42")
	assert.True(t, ok)
	assert.True(t, state.Paused)
}

func TestWebhookOverSoftCapSendsBusyReplyInsteadOfQueueing(t *testing.T) {
	a, err := app.New(config.Configuration{
		WorkerPoolMin:       1,
		WorkerPoolMax:       1,
		QueueSoftCap:        1,
		FollowUpTZ:          "UTC",
		RateUserPerMinute:   100,
		RateIPPerMinute:     100,
		RateGlobalPerMinute: 1000,
		CoalesceWindow:      10 * time.Millisecond,
		CoalesceMaxWait:     20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	a.onCoalesced(models.InboundMessage{UserID: "seed", Text: "seed message", Source: models.SourceTest})
	require.Eventually(t, func() bool { return a.Queue.Depth() == 1 }, time.Second, 5*time.Millisecond)

	c, w := ginContextWithApp(t, a, http.MethodPost, `{
		"data": {"key": {"remoteJid": "5491199998888@s.whatsapp.net"}, "message": {"conversation": "hola otra vez"}}
	}`)

	WebhookWhatsApp(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, a.Queue.Depth(), "second message should not be queued once the soft cap is reached")
}

func TestWebhookMissingAppReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString("{}"))

	WebhookWhatsApp(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookInvalidBodyReturns400(t *testing.T) {
	a := testApp(t)
	c, w := ginContextWithApp(t, a, http.MethodPost, "not json")

	WebhookWhatsApp(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
