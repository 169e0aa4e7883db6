// Package followup implements C9: the durable 14-stage follow-up
// cadence that re-engages a dormant user after a bounded offset from
// their last activity, resets to stage 0 on any reply, and enforces
// daily send caps, quiet hours, and a blacklist before every send.
package followup

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/robfig/cron/v3"

	"github.com/coralcommerce/dispatcher/botstate"
	"github.com/coralcommerce/dispatcher/convstore"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/telemetry"
	"github.com/coralcommerce/dispatcher/transport"
)

const dispatchTickSpec = "@every 45s"

// Scheduler owns the cron-driven dispatch ticker plus the
// OnUserActivity/CancelPending entry points the rest of the dispatcher
// calls into. It implements dispatch.Mediator.
type Scheduler struct {
	db   *gorm.DB
	gate *botstate.Gate
	cs    *convstore.Store
	reg   *transport.Registry
	cfg   Config
	meter *telemetry.Meter

	cron *cron.Cron

	mu sync.Mutex
}

// SetMeter wires in C10's instruments. Left nil, Scheduler records
// nothing.
func (s *Scheduler) SetMeter(m *telemetry.Meter) { s.meter = m }

func New(db *gorm.DB, gate *botstate.Gate, cs *convstore.Store, reg *transport.Registry, cfg Config) *Scheduler {
	if cfg.TZ == nil {
		cfg.TZ = time.UTC
	}
	if cfg.AllowedWeekdays == nil {
		cfg.AllowedWeekdays = DefaultAllowedWeekdays()
	}
	return &Scheduler{
		db:   db,
		gate: gate,
		cs:   cs,
		reg:  reg,
		cfg:  cfg,
	}
}

// Start runs the startup reconciliation pass once, then launches the
// cron-scheduled dispatch ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.reconcile(); err != nil {
		log.Printf("followup: reconciliation error: %v", err)
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(dispatchTickSpec, func() { s.dispatchDue(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for any in-flight cron job to finish before returning.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// OnUserActivity implements dispatch.Mediator: called by the worker
// pool after every successful reply. It is the stage-0 reset — cancel
// whatever is pending, snapshot the fresh context, and re-arm stage 0.
func (s *Scheduler) OnUserActivity(userID string, cc models.ConversationContext) {
	if s.db == nil {
		return
	}
	if err := s.CancelPending(userID); err != nil {
		log.Printf("followup: cancel pending for %s: %v", userID, err)
	}

	snapshot := snapshotFrom(cc)
	job := &models.FollowUpJob{
		UserID:       userID,
		Stage:        0,
		ScheduledFor: time.Now().UTC().Add(stageOffsets[0]),
		Status:       models.FollowUpStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	job.ContextSnapshot = models.NewJSONColumn(snapshot)

	if err := s.db.Create(job).Error; err != nil {
		// A racing insert tripping the partial unique index is expected
		// and harmless: some other activity already armed stage 0.
		log.Printf("followup: arm stage 0 for %s: %v", userID, err)
		return
	}
	if s.meter != nil {
		s.meter.FollowupArmed(context.Background())
	}
}

// CancelPending implements the reply-reset half of the stage-0
// invariant: called from C2's Admit path on every inbound message, it
// cancels any job still pending without itself re-arming one (the
// re-arm only happens after a successful reply, via OnUserActivity).
func (s *Scheduler) CancelPending(userID string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Model(&models.FollowUpJob{}).
		Where("user_id = ? AND status = ?", userID, models.FollowUpStatusPending).
		Update("status", models.FollowUpStatusCancelled).Error
}

// Activate arms a fresh stage-0 job for userID, used by
// POST /followup/activate/{userId} to (re)start the cadence for a user
// with no recent conversation activity to hang it off of.
func (s *Scheduler) Activate(userID string) error {
	if s.db == nil {
		return nil
	}
	job := &models.FollowUpJob{
		UserID:       userID,
		Stage:        0,
		ScheduledFor: time.Now().UTC().Add(stageOffsets[0]),
		Status:       models.FollowUpStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.Create(job).Error; err != nil {
		return err
	}
	if s.meter != nil {
		s.meter.FollowupArmed(context.Background())
	}
	return nil
}

// Deactivate cancels every pending job for userID and adds them to the
// blacklist so the cadence does not silently resume on next activity.
func (s *Scheduler) Deactivate(userID string) error {
	if s.db == nil {
		return nil
	}
	if err := s.CancelPending(userID); err != nil {
		return err
	}
	return s.db.Save(&models.FollowUpBlacklist{
		UserID:  userID,
		Reason:  "deactivated via admin API",
		AddedAt: time.Now().UTC(),
	}).Error
}

// Status reports the latest job row for userID, for the admin
// GET /followup/status/{userId} endpoint.
func (s *Scheduler) Status(userID string) (models.FollowUpJob, bool) {
	if s.db == nil {
		return models.FollowUpJob{}, false
	}
	var job models.FollowUpJob
	if err := s.db.Where("user_id = ?", userID).Order("id desc").First(&job).Error; err != nil {
		return models.FollowUpJob{}, false
	}
	return job, true
}

func snapshotFrom(cc models.ConversationContext) models.FollowUpSnapshot {
	snap := models.FollowUpSnapshot{Profile: cc.Profile.Value}
	products := cc.RecentProducts.Value
	if len(products) > 0 {
		snap.RecentProducts = products
	}
	snap.LastQuestions = cc.Profile.Value.QuestionsAsked
	return snap
}
