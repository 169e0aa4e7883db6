package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coralcommerce/dispatcher/agent"
	"github.com/coralcommerce/dispatcher/app"
	"github.com/coralcommerce/dispatcher/models"
)

type testMessageRequest struct {
	UserID string `json:"userId" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

type testMessageResponse struct {
	UserID string `json:"userId"`
	Reply  string `json:"reply"`
}

// TestMessage handles POST /test/message: a synchronous path straight
// through C6 and the agent runtime, bypassing C2/C3/C4/C5 entirely.
// It exists for smoke-testing the agent's replies against a real
// conversation context without waiting on the async pipeline.
func TestMessage(c *gin.Context) {
	a := app.FromContext(c)
	if a == nil {
		RespondError(c, "app not configured on context", http.StatusInternalServerError)
		return
	}

	var req testMessageRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	cc, err := a.Store.Get(req.UserID)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), agent.Timeout)
	defer cancel()

	reply, err := a.Runtime.InferReply(ctx, req.UserID, cc, req.Text)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	if _, err := a.Store.Update(req.UserID, func(cc *models.ConversationContext) {
		cc.AppendTurn(models.Turn{Role: "user", Text: req.Text, At: now})
		cc.AppendTurn(models.Turn{Role: "assistant", Text: reply, At: now})
		cc.LastInteraction = now
	}); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := a.Transport.SendOutbound(ctx, models.SourceTest, req.UserID, reply); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, testMessageResponse{UserID: req.UserID, Reply: reply})
}
