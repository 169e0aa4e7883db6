package models

import "time"

const (
	FollowUpStatusPending    = "pending"
	FollowUpStatusProcessing = "processing"
	FollowUpStatusSent       = "sent"
	FollowUpStatusCancelled  = "cancelled"
	FollowUpStatusFailed     = "failed"
)

// MaxFollowUpAttempts bounds retries on transport failure during send.
const MaxFollowUpAttempts = 3

// MaintenanceStage is the terminal recurring stage (the 14th), fired
// every 15 days once the 13 scripted stages are exhausted.
const MaintenanceStage = 999

// FollowUpJob is one armed or fired occurrence of the 14-stage cadence
// for a user. The partial unique index on (user_id, stage) WHERE
// status='pending' (see db/migrations) enforces the unique-pending
// constraint at the database layer; OnUserActivity/reply-reset rely on
// that constraint never being violated by a racing insert.
type FollowUpJob struct {
	ID     int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	UserID string `gorm:"column:user_id;index;not null" json:"userId"`
	Stage  int    `gorm:"column:stage" json:"stage"`

	ScheduledFor time.Time `gorm:"column:scheduled_for;index" json:"scheduledFor"`
	Status       string    `gorm:"column:status;index" json:"status"`
	Attempts     int       `gorm:"column:attempts" json:"attempts"`

	ContextSnapshot JSONColumn[FollowUpSnapshot] `gorm:"column:context_snapshot;type:text" json:"contextSnapshot"`

	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processedAt,omitempty"`
}

func (FollowUpJob) TableName() string { return "follow_up_jobs" }

// FollowUpSnapshot is the subset of ConversationContext captured at
// activation time, used to render stage templates without re-reading
// the live (possibly since-changed) context.
type FollowUpSnapshot struct {
	Profile        Profile           `json:"profile"`
	RecentProducts []ProductMention  `json:"recentProducts"`
	LastQuestions  []string          `json:"lastQuestions"`
}

// FollowUpHistory records every follow-up actually sent, independent of
// job bookkeeping, for reporting and reply-attribution.
type FollowUpHistory struct {
	ID           int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	UserID       string     `gorm:"column:user_id;index;not null" json:"userId"`
	Stage        int        `gorm:"column:stage" json:"stage"`
	MessageSent  string     `gorm:"column:message_sent;type:text" json:"messageSent"`
	SentAt       time.Time  `gorm:"column:sent_at" json:"sentAt"`
	Responded    bool       `gorm:"column:responded" json:"responded"`
	RespondedAt  *time.Time `gorm:"column:responded_at" json:"respondedAt,omitempty"`
}

func (FollowUpHistory) TableName() string { return "follow_up_history" }

// FollowUpRateLimit enforces the one-follow-up-per-civil-day cap.
type FollowUpRateLimit struct {
	UserID             string    `gorm:"column:user_id;primary_key" json:"userId"`
	LastFollowupSentAt time.Time `gorm:"column:last_followup_sent_at" json:"lastFollowupSentAt"`
	DailyCount         int       `gorm:"column:daily_count" json:"dailyCount"`
	ResetDate          string    `gorm:"column:reset_date" json:"resetDate"` // civil date, YYYY-MM-DD in configured zone
}

func (FollowUpRateLimit) TableName() string { return "follow_up_rate_limits" }

// FollowUpBlacklist holds users who must never receive a follow-up.
type FollowUpBlacklist struct {
	UserID  string    `gorm:"column:user_id;primary_key" json:"userId"`
	Reason  string    `gorm:"column:reason" json:"reason,omitempty"`
	AddedAt time.Time `gorm:"column:added_at" json:"addedAt"`
}

func (FollowUpBlacklist) TableName() string { return "follow_up_blacklist" }
