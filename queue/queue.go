// Package queue implements C4: a four-level priority queue with a
// fairness hook to prevent one user's backlog from monopolizing a
// priority level, durable mirroring for crash recovery, and a bounded
// per-user dedup cache.
package queue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/telemetry"
)

const (
	dedupeCachePerUser = 20
	livenessThreshold  = 2 * time.Minute
)

// Queue holds the four priority sub-lists plus per-user bookkeeping.
// Each sub-list and the associated condition variable are protected by
// a single mutex; Lease blocks on the condition until work is
// available or the context is cancelled.
type Queue struct {
	db *gorm.DB

	mu       sync.Mutex
	cond     *sync.Cond
	levels   [4]*list.List // indexed by models.Priority
	inFlight map[string]bool // userId currently has a processing item

	recent map[string][]string // userId -> recent message hashes (bounded)

	meter *telemetry.Meter
}

func New(db *gorm.DB) *Queue {
	q := &Queue{
		db:       db,
		inFlight: make(map[string]bool),
		recent:   make(map[string][]string),
	}
	for i := range q.levels {
		q.levels[i] = list.New()
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// SetMeter wires in C10's instruments. Left nil, Queue records nothing.
func (q *Queue) SetMeter(m *telemetry.Meter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.meter = m
}

// Submit inserts item into its priority sub-queue, deduplicating
// against the user's recent-hash window, and mirrors the row durably.
func (q *Queue) Submit(item *models.QueuedItem) (accepted bool, err error) {
	if item.QueueID == "" {
		item.QueueID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.ScheduledAt.IsZero() {
		item.ScheduledAt = item.CreatedAt
	}
	item.Status = models.QueueStatusPending

	q.mu.Lock()
	if q.isDuplicateLocked(item.UserID, item.MessageHash) {
		q.mu.Unlock()
		return false, nil
	}
	q.markSeenLocked(item.UserID, item.MessageHash)
	q.levels[item.Priority].PushBack(item)
	meter := q.meter
	q.mu.Unlock()
	q.cond.Broadcast()

	if meter != nil {
		meter.QueueEnqueued(context.Background(), item.Priority.String())
	}

	if q.db != nil {
		if err := q.db.Create(item).Error; err != nil {
			return true, err
		}
	}
	return true, nil
}

func (q *Queue) isDuplicateLocked(userID, hash string) bool {
	if hash == "" {
		return false
	}
	for _, h := range q.recent[userID] {
		if h == hash {
			return true
		}
	}
	return false
}

func (q *Queue) markSeenLocked(userID, hash string) {
	if hash == "" {
		return
	}
	list := append(q.recent[userID], hash)
	if len(list) > dedupeCachePerUser {
		list = list[len(list)-dedupeCachePerUser:]
	}
	q.recent[userID] = list
}

// Lease blocks until an eligible item is available or ctx is done,
// draining URGENT first, then HIGH, NORMAL, LOW, strict FIFO within a
// level, skipping any head whose user already has an item processing
// (the fairness hook) until all heads are exhausted.
func (q *Queue) Lease(ctx context.Context, workerID string) (*models.QueuedItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if item := q.leaseEligibleLocked(workerID); item != nil {
			return item, nil
		}

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) leaseEligibleLocked(workerID string) *models.QueuedItem {
	for _, lvl := range q.levels {
		for e := lvl.Front(); e != nil; e = e.Next() {
			item := e.Value.(*models.QueuedItem)
			if q.inFlight[item.UserID] {
				continue
			}
			lvl.Remove(e)
			now := time.Now().UTC()
			item.Status = models.QueueStatusProcessing
			item.WorkerID = workerID
			item.StartedAt = &now
			q.inFlight[item.UserID] = true

			if q.db != nil {
				q.db.Model(&models.QueuedItem{}).Where("queue_id = ?", item.QueueID).
					Updates(map[string]any{"status": item.Status, "worker_id": workerID, "started_at": now})
			}
			if q.meter != nil {
				q.meter.QueueLeased(context.Background(), item.Priority.String())
			}
			return item
		}
	}
	return nil
}

// Ack finalizes a leased item. On failure with attempts remaining it
// is re-enqueued at the tail of its original priority level with
// ScheduledAt set to now plus the exponential backoff; Lease does not
// wait for ScheduledAt, so the item can be leased again at once.
// Otherwise it moves to dead_letter.
func (q *Queue) Ack(item *models.QueuedItem, success bool, lastErr string) {
	q.mu.Lock()
	delete(q.inFlight, item.UserID)
	now := time.Now().UTC()

	if success {
		item.Status = models.QueueStatusCompleted
		item.CompletedAt = &now
	} else {
		item.Attempts++
		item.LastError = lastErr
		if item.Attempts >= models.MaxQueueAttempts {
			item.Status = models.QueueStatusDeadLetter
			item.CompletedAt = &now
		} else {
			item.Status = models.QueueStatusPending
			item.ScheduledAt = now.Add(backoff(item.Attempts))
			item.StartedAt = nil
			item.WorkerID = ""
			q.levels[item.Priority].PushBack(item)
		}
	}
	meter := q.meter
	q.mu.Unlock()
	q.cond.Broadcast()

	if meter != nil {
		meter.QueueAcked(context.Background(), item.Priority.String(), success)
	}

	if q.db != nil {
		q.db.Model(&models.QueuedItem{}).Where("queue_id = ?", item.QueueID).
			Updates(map[string]any{
				"status":       item.Status,
				"attempts":     item.Attempts,
				"last_error":   item.LastError,
				"started_at":   item.StartedAt,
				"completed_at": item.CompletedAt,
				"scheduled_at": item.ScheduledAt,
				"worker_id":    item.WorkerID,
			})
	}
}

// backoff implements 2^attempts * 500ms capped at 30s.
func backoff(attempts int) time.Duration {
	d := 500 * time.Millisecond
	for i := 0; i < attempts; i++ {
		d *= 2
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// Depth returns the total number of pending items across all levels,
// used by the worker pool's scaling loop and by C10/health.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, lvl := range q.levels {
		n += lvl.Len()
	}
	return n
}

// RecoverStaleProcessing reverts any durable row left in processing
// past the liveness threshold back to pending. Call LoadPending
// afterwards to repopulate the in-memory levels from the durable table.
func RecoverStaleProcessing(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	cutoff := time.Now().UTC().Add(-livenessThreshold)
	return db.Model(&models.QueuedItem{}).
		Where("status = ? AND started_at < ?", models.QueueStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":     models.QueueStatusPending,
			"started_at": nil,
			"worker_id":  "",
		}).Error
}

// LoadPending repopulates the in-memory levels from every durable row
// still pending, in (priority, created_at) order. Call once at startup
// after RecoverStaleProcessing.
func (q *Queue) LoadPending() error {
	if q.db == nil {
		return nil
	}
	var items []*models.QueuedItem
	if err := q.db.Where("status = ?", models.QueueStatusPending).
		Order("priority asc, created_at asc").Find(&items).Error; err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range items {
		q.levels[item.Priority].PushBack(item)
		q.markSeenLocked(item.UserID, item.MessageHash)
	}
	return nil
}
