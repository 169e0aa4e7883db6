package convstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coralcommerce/dispatcher/models"
)

func TestLRUEvictsOldestOverCapacity(t *testing.T) {
	c := newLRU(2, time.Minute)
	c.Set("a", models.ConversationContext{UserID: "a"})
	c.Set("b", models.ConversationContext{UserID: "b"})
	c.Set("c", models.ConversationContext{UserID: "c"})

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	c := newLRU(2, time.Minute)
	c.Set("a", models.ConversationContext{UserID: "a"})
	c.Set("b", models.ConversationContext{UserID: "b"})
	c.Get("a") // a is now most-recently-used
	c.Set("c", models.ConversationContext{UserID: "c"})

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted, not a")
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestLRUEntryExpiresByTTL(t *testing.T) {
	c := newLRU(10, -time.Second)
	c.Set("a", models.ConversationContext{UserID: "a"})

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLRUDelete(t *testing.T) {
	c := newLRU(10, time.Minute)
	c.Set("a", models.ConversationContext{UserID: "a"})
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}
