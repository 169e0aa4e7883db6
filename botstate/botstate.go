// Package botstate implements C7: the per-user paused/active gate,
// backed by the shared L2 cache with TTL for automatic expiry and
// mirrored to the durable store for crash recovery.
package botstate

import (
	"encoding/json"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/coralcommerce/dispatcher/convstore"
	"github.com/coralcommerce/dispatcher/models"
)

const defaultPauseTTL = 24 * time.Hour

type Gate struct {
	l2 convstore.Cache
	db *gorm.DB
}

func New(l2 convstore.Cache, db *gorm.DB) *Gate {
	return &Gate{l2: l2, db: db}
}

func cacheKey(userID string) string { return "botstate:" + userID }

// IsPaused reports whether userID is currently paused. An expired
// record or a force-active one is treated as not paused.
func (g *Gate) IsPaused(userID string) bool {
	state, ok := g.read(userID)
	if !ok {
		return false
	}
	if state.ForceActive {
		return false
	}
	if state.Expired(time.Now().UTC()) {
		return false
	}
	return state.Paused
}

func (g *Gate) read(userID string) (models.BotState, bool) {
	if g.l2 != nil && g.l2.Available() {
		if raw, ok := g.l2.Get(cacheKey(userID)); ok {
			var s models.BotState
			if err := json.Unmarshal(raw, &s); err == nil {
				return s, true
			}
		}
	}
	if g.db == nil {
		return models.BotState{}, false
	}
	var s models.BotState
	if err := g.db.Where("user_id = ?", userID).First(&s).Error; err != nil {
		return models.BotState{}, false
	}
	g.writeCache(s)
	return s, true
}

func (g *Gate) writeCache(s models.BotState) {
	if g.l2 == nil || !g.l2.Available() {
		return
	}
	ttl := defaultPauseTTL
	if !s.ExpiresAt.IsZero() {
		if remaining := time.Until(s.ExpiresAt); remaining > 0 {
			ttl = remaining
		}
	}
	if b, err := json.Marshal(s); err == nil {
		g.l2.Set(cacheKey(s.UserID), b, ttl)
	}
}

func (g *Gate) persist(s models.BotState) {
	g.writeCache(s)
	if g.db != nil {
		s.UpdatedAt = time.Now().UTC()
		g.db.Save(&s)
	}
}

// Pause sets paused=true with reason/setBy/ttl. Idempotent: pausing an
// already-paused user updates reason/expiresAt rather than erroring.
// A previously force-active user can still be paused by an explicit
// Pause call — only ForceActivate promotes, never demotes silently.
func (g *Gate) Pause(userID, reason, setBy string, ttl time.Duration) {
	if ttl == 0 {
		ttl = defaultPauseTTL
	}
	now := time.Now().UTC()
	s := models.BotState{
		UserID:    userID,
		Paused:    true,
		Reason:    reason,
		SetBy:     setBy,
		PausedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	g.persist(s)
}

// PauseFromSignal behaves like Pause but never demotes a force-active
// user: per the force-active precedence rule, only an explicit operator
// Pause/Resume call may override ForceActivate, never an inbound signal
// (a tag, a status change, an assignment, a private-note command).
func (g *Gate) PauseFromSignal(userID, reason, setBy string, ttl time.Duration) {
	if existing, ok := g.read(userID); ok && existing.ForceActive {
		return
	}
	g.Pause(userID, reason, setBy, ttl)
}

// Resume clears the paused flag. As an explicit operator call it is
// also allowed to clear a prior ForceActivate.
func (g *Gate) Resume(userID string) {
	existing, _ := g.read(userID)
	existing.UserID = userID
	existing.Paused = false
	existing.Reason = ""
	existing.ForceActive = false
	g.persist(existing)
}

// ForceActivate overrides any paused state regardless of TTL/reason
// and can only itself be cleared by another explicit operator call
// (Resume also clears ForceActive, since it is the explicit override).
func (g *Gate) ForceActivate(userID string) {
	s := models.BotState{UserID: userID, Paused: false, ForceActive: true}
	g.persist(s)
}

// Status returns the raw record for the admin status endpoint.
func (g *Gate) Status(userID string) (models.BotState, bool) {
	return g.read(userID)
}
