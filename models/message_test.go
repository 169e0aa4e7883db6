package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageHashStableAndDistinct(t *testing.T) {
	a := InboundMessage{UserID: "user1", Text: "hola"}
	b := InboundMessage{UserID: "user1", Text: "hola"}
	c := InboundMessage{UserID: "user1", Text: "chau"}
	d := InboundMessage{UserID: "user2", Text: "hola"}

	assert.Equal(t, a.MessageHash(), b.MessageHash())
	assert.NotEqual(t, a.MessageHash(), c.MessageHash())
	assert.NotEqual(t, a.MessageHash(), d.MessageHash())
	assert.Len(t, a.MessageHash(), 64)
}
