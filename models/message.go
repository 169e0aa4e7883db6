package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	SourceWhatsApp = "whatsapp"
	SourceChatwoot = "chatwoot"
	SourceTest     = "test"
)

// InboundMessage is the canonical intake record every transport adapter
// normalizes its webhook payload into. It is immutable after
// construction; burst coalescing builds a new InboundMessage from
// several rather than mutating one in place.
type InboundMessage struct {
	UserID             string
	Text               string
	Source             string
	TransportMessageID string
	ConversationID     string
	ArrivedAt          time.Time
	RawMetadata        map[string]any
}

// MessageHash is sha256(userId || ':' || text), the dedup key C2 and C4
// both check against.
func (m InboundMessage) MessageHash() string {
	sum := sha256.Sum256([]byte(m.UserID + ":" + m.Text))
	return hex.EncodeToString(sum[:])
}

// SupervisoryEvent is what C1 extracts from a transport payload that
// isn't a plain inbound message: label/status/assignee changes or a
// private note, destined for C8.
type SupervisoryEvent struct {
	UserID         string
	ConversationID string
	Labels         []string
	Status         string // resolved, closed, open, pending, ""
	AssigneeID     string // empty means unassigned
	PrivateNote    string
	OccurredAt     time.Time
}
