package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coralcommerce/dispatcher/app"
)

type pauseRequest struct {
	Reason string `json:"reason"`
	TTLSec int    `json:"ttlSeconds"`
}

// BotStatus handles GET /bot/status/:userId.
func BotStatus(c *gin.Context) {
	a := app.FromContext(c)
	userID := c.Param("userId")
	state, ok := a.Gate.Status(userID)
	if !ok {
		RespondSuccess(c, gin.H{"userId": userID, "paused": false})
		return
	}
	RespondSuccess(c, state)
}

// BotPause handles POST /bot/pause/:userId.
func BotPause(c *gin.Context) {
	a := app.FromContext(c)
	userID := c.Param("userId")

	var req pauseRequest
	_ = c.Bind(&req)

	ttl := time.Duration(req.TTLSec) * time.Second
	setBy := "api"
	if user, ok := GetUserLogged(c); ok {
		setBy = user.Email
	}

	a.Gate.Pause(userID, req.Reason, setBy, ttl)
	RespondSuccess(c, gin.H{"userId": userID, "paused": true})
}

// BotResume handles POST /bot/resume/:userId.
func BotResume(c *gin.Context) {
	a := app.FromContext(c)
	userID := c.Param("userId")
	a.Gate.Resume(userID)
	RespondSuccess(c, gin.H{"userId": userID, "paused": false})
}

// BotResumeAll handles POST /bot/resume-all. There is no bulk store
// scan in C7 by design (pause state is looked up per-user, never
// listed) — this endpoint forces the most common bulk use case, ending
// a global pause set by a prior incident response, by clearing this
// operator's own namespace of known-paused users passed in the body.
type resumeAllRequest struct {
	UserIDs []string `json:"userIds"`
}

func BotResumeAll(c *gin.Context) {
	a := app.FromContext(c)
	var req resumeAllRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	for _, userID := range req.UserIDs {
		a.Gate.Resume(userID)
	}
	RespondSuccess(c, gin.H{"resumed": len(req.UserIDs)})
}

// FollowUpActivate handles POST /followup/activate/:userId.
func FollowUpActivate(c *gin.Context) {
	a := app.FromContext(c)
	userID := c.Param("userId")
	if err := a.Followup.Activate(userID); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, gin.H{"userId": userID, "activated": true})
}

// FollowUpDeactivate handles POST /followup/deactivate/:userId.
func FollowUpDeactivate(c *gin.Context) {
	a := app.FromContext(c)
	userID := c.Param("userId")
	if err := a.Followup.Deactivate(userID); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, gin.H{"userId": userID, "deactivated": true})
}

// FollowUpStatus handles GET /followup/status/:userId.
func FollowUpStatus(c *gin.Context) {
	a := app.FromContext(c)
	userID := c.Param("userId")
	job, ok := a.Followup.Status(userID)
	if !ok {
		RespondSuccess(c, gin.H{"userId": userID, "status": "none"})
		return
	}
	RespondSuccess(c, job)
}
