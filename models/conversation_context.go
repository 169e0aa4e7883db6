package models

import "time"

// Profile carries the free-form signals the agent gathers about a user
// as the conversation progresses. It is stored as a JSON column since
// its shape is allowed to grow without a migration.
type Profile struct {
	Type                      string   `json:"type,omitempty"` // entrepreneur, reseller, retail
	ExperienceLevel           string   `json:"experienceLevel,omitempty"`
	PrimaryInterest           string   `json:"primaryInterest,omitempty"`
	BudgetMentioned           bool     `json:"budgetMentioned,omitempty"`
	SpecificProductsMentioned []string `json:"specificProductsMentioned,omitempty"`
	ObjectionsRaised          []string `json:"objectionsRaised,omitempty"`
	QuestionsAsked            []string `json:"questionsAsked,omitempty"`
	EngagementLevel           string   `json:"engagementLevel,omitempty"` // low, medium, high
}

// ProductMention is one entry in ConversationContext's recentProducts ring buffer.
type ProductMention struct {
	Name     string    `json:"name"`
	Price    float64   `json:"price,omitempty"`
	ID       string    `json:"id,omitempty"`
	URL      string    `json:"url,omitempty"`
	Category string    `json:"category,omitempty"`
	ShownAt  time.Time `json:"shownAt"`
}

// Turn is one entry in ConversationContext's interactionHistory ring buffer.
// ID, when set, is the producing queue item's QueueID — it lets a
// retried append recognize turns it already wrote instead of
// duplicating them.
type Turn struct {
	ID   string    `json:"id,omitempty"`
	Role string    `json:"role"` // user, assistant, system
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

const (
	StateBrowsing   = "browsing"
	StateSelecting  = "selecting"
	StatePurchasing = "purchasing"
	StateEscalated  = "escalated"
)

const (
	maxRecentProducts     = 10
	maxInteractionHistory = 20
)

// ConversationContext is the per-user durable record C6 resolves through
// its three tiers. Ring-buffer fields are append-at-tail/drop-from-head;
// AppendProduct and AppendTurn are the only mutators that should touch them.
type ConversationContext struct {
	UserID string `gorm:"column:user_id;primary_key" json:"userId"`

	Profile            JSONColumn[Profile]          `gorm:"column:profile;type:text" json:"profile"`
	RecentProducts     JSONColumn[[]ProductMention] `gorm:"column:recent_products;type:text" json:"recentProducts"`
	InteractionHistory JSONColumn[[]Turn]           `gorm:"column:interaction_history;type:text" json:"interactionHistory"`

	State string `gorm:"column:state" json:"state"`

	// VIP bypasses C2's per-user rate bucket (not the global one); set
	// by an operator out of band, never by the dispatcher itself.
	VIP bool `gorm:"column:vip" json:"vip"`

	ConversationStarted time.Time `gorm:"column:conversation_started" json:"conversationStarted"`
	LastInteraction     time.Time `gorm:"column:last_interaction" json:"lastInteraction"`

	UpdatedAt time.Time `gorm:"column:updated_at" json:"-"`
}

func (ConversationContext) TableName() string { return "conversation_contexts" }

// NewConversationContext returns the fresh, empty context C6.Get hands
// back for a user it has never seen, per the context-creation policy:
// no side effects until an Update is called.
func NewConversationContext(userID string, now time.Time) ConversationContext {
	return ConversationContext{
		UserID:              userID,
		State:               StateBrowsing,
		ConversationStarted: now,
		LastInteraction:     now,
	}
}

// AppendProduct appends to the recentProducts ring buffer, dropping from
// the head on overflow.
func (cc *ConversationContext) AppendProduct(p ProductMention) {
	list := append(cc.RecentProducts.Value, p)
	if len(list) > maxRecentProducts {
		list = list[len(list)-maxRecentProducts:]
	}
	cc.RecentProducts.Value = list
}

// AppendTurn appends to the interactionHistory ring buffer, dropping
// from the head on overflow.
func (cc *ConversationContext) AppendTurn(t Turn) {
	list := append(cc.InteractionHistory.Value, t)
	if len(list) > maxInteractionHistory {
		list = list[len(list)-maxInteractionHistory:]
	}
	cc.InteractionHistory.Value = list
}
