package models

import "time"

// RateBucket maps a row of the rate_limits table (a sliding-fixed
// rate-limit window). C2 keeps its state in-process only, via
// golang.org/x/time/rate, and neither writes nor reads these rows.
type RateBucket struct {
	Identifier      string    `gorm:"column:identifier;primary_key" json:"identifier"` // userId, ip, or "global"
	WindowSeconds   int       `gorm:"column:window_size" json:"windowSeconds"`
	MaxRequests     int       `gorm:"column:max_requests" json:"maxRequests"`
	CurrentRequests int       `gorm:"column:current_requests" json:"currentRequests"`
	WindowStart     time.Time `gorm:"column:window_start" json:"windowStart"`
}

func (RateBucket) TableName() string { return "rate_limits" }

// DedupeEntry is the in-memory record C2 checks to short-circuit on a
// repeated (userId, messageHash) within the TTL window. It is never
// persisted; duplicates surviving a restart are accepted at-least-once
// by design.
type DedupeEntry struct {
	UserID      string
	MessageHash string
	ExpiresAt   time.Time
}
