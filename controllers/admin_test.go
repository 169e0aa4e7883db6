package controllers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func ginContextWithParam(a any, method, body, param, value string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("app", a)
	c.Params = gin.Params{{Key: param, Value: value}}
	return c, w
}

func TestBotStatusUnknownUserReportsNotPaused(t *testing.T) {
	a := testApp(t)
	c, w := ginContextWithParam(a, http.MethodGet, "", "userId", "unknown-user")

	BotStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paused":false`)
}

func TestBotPauseThenStatusReflectsPause(t *testing.T) {
	a := testApp(t)
	c, w := ginContextWithParam(a, http.MethodPost, `{"reason":"manual","ttlSeconds":60}`, "userId", "u1")

	BotPause(c)
	assert.Equal(t, http.StatusOK, w.Code)

	state, ok := a.Gate.Status("u1")
	assert.True(t, ok)
	assert.True(t, state.Paused)
	assert.Equal(t, "manual", state.Reason)
}

func TestBotResumeClearsPause(t *testing.T) {
	a := testApp(t)
	a.Gate.Pause("u1", "manual", "api", 0)

	c, _ := ginContextWithParam(a, http.MethodPost, "", "userId", "u1")
	BotResume(c)

	state, ok := a.Gate.Status("u1")
	assert.True(t, ok)
	assert.False(t, state.Paused)
}

func TestBotResumeAllResumesEveryListedUser(t *testing.T) {
	a := testApp(t)
	a.Gate.Pause("u1", "manual", "api", 0)
	a.Gate.Pause("u2", "manual", "api", 0)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"userIds":["u1","u2"]}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("app", a)

	BotResumeAll(c)

	assert.Equal(t, http.StatusOK, w.Code)
	s1, _ := a.Gate.Status("u1")
	s2, _ := a.Gate.Status("u2")
	assert.False(t, s1.Paused)
	assert.False(t, s2.Paused)
}

func TestFollowUpStatusUnknownUserReturnsNone(t *testing.T) {
	a := testApp(t)
	c, w := ginContextWithParam(a, http.MethodGet, "", "userId", "nobody")

	FollowUpStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"none"`)
}
