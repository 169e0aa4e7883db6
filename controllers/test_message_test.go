package controllers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTestMessageReturnsReplyAndUpdatesContext(t *testing.T) {
	a := testApp(t)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/test/message", bytes.NewBufferString(`{"userId":"u1","text":"hola"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("app", a)

	TestMessage(c)

	assert.Equal(t, http.StatusOK, w.Code)

	cc, err := a.Store.Get("u1")
	assert.NoError(t, err)
	assert.NotEmpty(t, cc.InteractionHistory.Value)
}

func TestTestMessageMissingFieldsReturns400(t *testing.T) {
	a := testApp(t)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/test/message", bytes.NewBufferString(`{"userId":""}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("app", a)

	TestMessage(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
