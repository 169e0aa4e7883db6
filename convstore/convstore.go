// Package convstore implements C6: the three-tier (in-process LRU,
// shared cache, durable relational) store of per-user
// ConversationContext, with write-through updates under a per-user
// lock.
package convstore

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/coralcommerce/dispatcher/errs"
	"github.com/coralcommerce/dispatcher/models"
)

const (
	l1Capacity = 500
	l1TTL      = 5 * time.Minute
	l2TTL      = 1 * time.Hour
)

type Store struct {
	l1 *lru
	l2 Cache
	db *gorm.DB

	userLocks sync.Map // userId -> *sync.Mutex
}

func New(db *gorm.DB, l2 Cache) *Store {
	return &Store{
		l1: newLRU(l1Capacity, l1TTL),
		l2: l2,
		db: db,
	}
}

func (s *Store) lockFor(userID string) *sync.Mutex {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Get walks L1 -> L2 -> L3, populating higher tiers on promotion. An
// unknown user yields a fresh context with no side effects.
func (s *Store) Get(userID string) (models.ConversationContext, error) {
	if cc, ok := s.l1.Get(userID); ok {
		return cc, nil
	}

	if s.l2 != nil && s.l2.Available() {
		if raw, ok := s.l2.Get(l2Key(userID)); ok {
			var cc models.ConversationContext
			if err := json.Unmarshal(raw, &cc); err == nil {
				s.l1.Set(userID, cc)
				return cc, nil
			}
		}
	}

	if s.db == nil {
		return models.NewConversationContext(userID, time.Now().UTC()), nil
	}

	var cc models.ConversationContext
	err := s.db.Where("user_id = ?", userID).First(&cc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.NewConversationContext(userID, time.Now().UTC()), nil
		}
		return models.ConversationContext{}, errs.Wrap(errs.StoreUnavailable, "read conversation context", err)
	}

	s.l1.Set(userID, cc)
	s.promoteL2(userID, cc)
	return cc, nil
}

// Update applies mutator under the user's lock, then writes through
// L1 -> L2 -> L3. L2 failures degrade silently; L3 failures fail the
// dispatch as retriable.
func (s *Store) Update(userID string, mutator func(*models.ConversationContext)) (models.ConversationContext, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	cc, err := s.Get(userID)
	if err != nil {
		return cc, err
	}

	mutator(&cc)
	cc.UpdatedAt = time.Now().UTC()

	s.l1.Set(userID, cc)
	s.promoteL2(userID, cc)

	if s.db == nil {
		return cc, nil
	}
	if err := s.db.Save(&cc).Error; err != nil {
		return cc, errs.Wrap(errs.StoreUnavailable, "write conversation context", err)
	}
	return cc, nil
}

// Touch refreshes lastInteraction without otherwise mutating the context.
func (s *Store) Touch(userID string) error {
	_, err := s.Update(userID, func(cc *models.ConversationContext) {
		cc.LastInteraction = time.Now().UTC()
	})
	return err
}

func (s *Store) promoteL2(userID string, cc models.ConversationContext) {
	if s.l2 == nil || !s.l2.Available() {
		return
	}
	b, err := json.Marshal(cc)
	if err != nil {
		return
	}
	s.l2.Set(l2Key(userID), b, l2TTL)
}

func l2Key(userID string) string { return "convctx:" + userID }
