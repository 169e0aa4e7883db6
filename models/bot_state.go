package models

import "time"

// BotState is the durable (L3) mirror of C7's per-user pause flag.
// Absence of a row is equivalent to paused=false; an expired row is
// treated as absent by the gate even before it is cleaned up.
type BotState struct {
	UserID    string    `gorm:"column:user_id;primary_key" json:"userId"`
	Paused    bool      `gorm:"column:paused" json:"paused"`
	Reason    string    `gorm:"column:reason" json:"reason,omitempty"`
	SetBy     string    `gorm:"column:set_by" json:"setBy,omitempty"`
	ForceActive bool    `gorm:"column:force_active" json:"forceActive"`
	PausedAt  time.Time `gorm:"column:paused_at" json:"pausedAt,omitempty"`
	ExpiresAt time.Time `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"-"`
}

func (BotState) TableName() string { return "bot_states" }

// Expired reports whether a paused record has aged out and should be
// treated as an implicit Resume.
func (b BotState) Expired(now time.Time) bool {
	return b.Paused && !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt)
}
