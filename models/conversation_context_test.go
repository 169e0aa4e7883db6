package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConversationContext(t *testing.T) {
	now := time.Now().UTC()
	cc := NewConversationContext("user1", now)

	assert.Equal(t, "user1", cc.UserID)
	assert.Equal(t, StateBrowsing, cc.State)
	assert.Equal(t, now, cc.ConversationStarted)
	assert.Equal(t, now, cc.LastInteraction)
	assert.False(t, cc.VIP)
	assert.Empty(t, cc.RecentProducts.Value)
	assert.Empty(t, cc.InteractionHistory.Value)
}

func TestAppendProductRingBuffer(t *testing.T) {
	cc := NewConversationContext("user1", time.Now().UTC())
	for i := 0; i < maxRecentProducts+5; i++ {
		cc.AppendProduct(ProductMention{Name: "product", ID: string(rune('a' + i))})
	}
	assert.Len(t, cc.RecentProducts.Value, maxRecentProducts)
	// the oldest entries were dropped from the head
	assert.Equal(t, string(rune('a'+5)), cc.RecentProducts.Value[0].ID)
}

func TestAppendTurnRingBuffer(t *testing.T) {
	cc := NewConversationContext("user1", time.Now().UTC())
	for i := 0; i < maxInteractionHistory+3; i++ {
		cc.AppendTurn(Turn{Role: "user", Text: "msg"})
	}
	assert.Len(t, cc.InteractionHistory.Value, maxInteractionHistory)
}
