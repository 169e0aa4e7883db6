package models

import "time"

// Priority mirrors the four sub-queues C4 drains in strict order.
type Priority int

const (
	PriorityUrgent Priority = 0
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
	PriorityLow    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
	QueueStatusDeadLetter = "dead_letter"
)

// MaxQueueAttempts bounds retries before an item is sent to dead_letter.
const MaxQueueAttempts = 3

// QueuedItem is the durable mirror of an in-memory queue entry. The
// in-memory C4 structure tracks the same lifecycle; this row exists so a
// restart can recover processing/pending items (see queue.RecoverStaleProcessing).
type QueuedItem struct {
	ID      int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	QueueID string `gorm:"column:queue_id;unique_index;not null" json:"queueId"`
	UserID  string `gorm:"column:user_id;index;not null" json:"userId"`

	MessageContent string `gorm:"column:message_content;type:text" json:"messageContent"`
	MessageHash    string `gorm:"column:message_hash;index" json:"messageHash"`
	Source         string `gorm:"column:source" json:"source"`
	ConversationID string `gorm:"column:conversation_id" json:"conversationId,omitempty"`

	Priority Priority `gorm:"column:priority" json:"priority"`
	Status   string   `gorm:"column:status;index" json:"status"`
	Attempts int      `gorm:"column:attempts" json:"attempts"`
	WorkerID string   `gorm:"column:worker_id" json:"workerId,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	ScheduledAt time.Time  `gorm:"column:scheduled_at" json:"scheduledAt"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
	LastError   string     `gorm:"column:last_error;type:text" json:"lastError,omitempty"`
}

func (QueuedItem) TableName() string { return "message_queue" }
