package followup

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/coralcommerce/dispatcher/models"
)

// dispatchDue is the cron tick body: select every job due for
// evaluation, claim it, run it through the guard chain, and send or
// reschedule.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	if s.db == nil {
		return
	}

	now := time.Now().UTC()
	query := s.db.Where("status = ? AND scheduled_for <= ?", models.FollowUpStatusPending, now)
	if !s.inMigrationMode() {
		// failed jobs are retried only while attempts remain; a job that
		// exhausted MaxFollowUpAttempts stays failed
		query = s.db.Where("(status = ? OR (status = ? AND attempts < ?)) AND scheduled_for <= ?",
			models.FollowUpStatusPending, models.FollowUpStatusFailed, models.MaxFollowUpAttempts, now)
	}

	var due []models.FollowUpJob
	if err := query.Order("scheduled_for asc").Limit(500).Find(&due).Error; err != nil {
		log.Printf("followup: select due jobs: %v", err)
		return
	}

	for _, job := range due {
		s.process(ctx, job)
	}
}

func (s *Scheduler) inMigrationMode() bool {
	return !s.cfg.MigrationModeUntil.IsZero() && time.Now().UTC().Before(s.cfg.MigrationModeUntil)
}

// process claims one due job and evaluates the full guard chain. It is
// optimistic-locked against any concurrent tick: the status-qualified
// UPDATE only affects the row if nobody else has already claimed it.
func (s *Scheduler) process(ctx context.Context, job models.FollowUpJob) {
	claim := s.db.Model(&models.FollowUpJob{}).
		Where("id = ? AND status = ?", job.ID, job.Status).
		Update("status", models.FollowUpStatusProcessing)
	if claim.Error != nil || claim.RowsAffected == 0 {
		return
	}

	if reason, ok := s.evaluateGuards(job); !ok {
		if s.meter != nil {
			s.meter.FollowupSkipped(ctx, string(reason))
		}
		s.reschedule(job, reason)
		return
	}

	s.send(ctx, job)
}

// guardFailure names why a job failed the guard chain, for logging.
type guardFailure string

func (s *Scheduler) evaluateGuards(job models.FollowUpJob) (guardFailure, bool) {
	var blacklisted models.FollowUpBlacklist
	if err := s.db.Where("user_id = ?", job.UserID).First(&blacklisted).Error; err == nil {
		return "blacklisted", false
	}

	now := time.Now().In(s.cfg.TZ)
	if !s.cfg.AllowedWeekdays[now.Weekday()] {
		return "weekday-window", false
	}
	if s.cfg.EndHour > s.cfg.StartHour {
		if now.Hour() < s.cfg.StartHour || now.Hour() >= s.cfg.EndHour {
			return "hour-window", false
		}
	}

	if s.dailyCapReached(job.UserID, now) {
		return "daily-cap", false
	}

	if s.gate != nil && s.gate.IsPaused(job.UserID) {
		return "paused", false
	}

	if s.cs != nil {
		if cc, err := s.cs.Get(job.UserID); err == nil {
			if cc.LastInteraction.After(job.CreatedAt) {
				return "newer-inbound", false
			}
		}
	}

	return "", true
}

func (s *Scheduler) dailyCapReached(userID string, now time.Time) bool {
	today := now.Format("2006-01-02")
	var bucket models.FollowUpRateLimit
	if err := s.db.Where("user_id = ?", userID).First(&bucket).Error; err != nil {
		return false
	}
	if bucket.ResetDate != today {
		return false
	}
	return bucket.DailyCount >= 1
}

// reschedule puts a guard-blocked job back to pending at the next
// valid window, without advancing its stage.
func (s *Scheduler) reschedule(job models.FollowUpJob, reason guardFailure) {
	next := s.nextValidWindow(time.Now().In(s.cfg.TZ))
	err := s.db.Model(&models.FollowUpJob{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":        models.FollowUpStatusPending,
			"scheduled_for": next.UTC(),
		}).Error
	if err != nil {
		log.Printf("followup: reschedule job %d after guard %q: %v", job.ID, reason, err)
	}
}

// nextValidWindow walks forward from `from` to the next instant inside
// both the allowed-weekday set and the [StartHour,EndHour) window.
func (s *Scheduler) nextValidWindow(from time.Time) time.Time {
	candidate := from
	for i := 0; i < 8; i++ {
		if s.cfg.AllowedWeekdays[candidate.Weekday()] {
			if s.cfg.EndHour <= s.cfg.StartHour {
				return candidate
			}
			if candidate.Hour() < s.cfg.StartHour {
				return time.Date(candidate.Year(), candidate.Month(), candidate.Day(), s.cfg.StartHour, 0, 0, 0, candidate.Location())
			}
			if candidate.Hour() < s.cfg.EndHour {
				return candidate
			}
		}
		candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, s.cfg.StartHour, 0, 0, 0, candidate.Location())
	}
	return candidate
}

// send renders and dispatches the job's message, then advances the
// cadence on success or backs off on failure.
func (s *Scheduler) send(ctx context.Context, job models.FollowUpJob) {
	var snapshot models.FollowUpSnapshot
	snapshot = job.ContextSnapshot.Value

	text := render(job.Stage, snapshot)
	source := sourceForUser(job.UserID)

	err := s.reg.SendOutbound(ctx, source, job.UserID, text)
	if err != nil {
		s.onSendFailure(job, err)
		return
	}
	if s.meter != nil {
		s.meter.FollowupFired(ctx)
	}
	s.onSendSuccess(job, text)
}

func (s *Scheduler) onSendSuccess(job models.FollowUpJob, text string) {
	now := time.Now().UTC()

	s.db.Create(&models.FollowUpHistory{
		UserID:      job.UserID,
		Stage:       job.Stage,
		MessageSent: text,
		SentAt:      now,
	})
	s.bumpDailyCount(job.UserID, now)

	nextStg, delay := nextStage(job.Stage)
	s.db.Model(&models.FollowUpJob{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":       models.FollowUpStatusSent,
			"processed_at": now,
		})

	next := &models.FollowUpJob{
		UserID:          job.UserID,
		Stage:           nextStg,
		ScheduledFor:    now.Add(delay),
		Status:          models.FollowUpStatusPending,
		ContextSnapshot: job.ContextSnapshot,
		CreatedAt:       now,
	}
	if err := s.db.Create(next).Error; err != nil {
		log.Printf("followup: arm stage %d for %s: %v", nextStg, job.UserID, err)
	}
}

func (s *Scheduler) bumpDailyCount(userID string, now time.Time) {
	today := now.In(s.cfg.TZ).Format("2006-01-02")
	var bucket models.FollowUpRateLimit
	err := s.db.Where("user_id = ?", userID).First(&bucket).Error
	if err == gorm.ErrRecordNotFound {
		s.db.Create(&models.FollowUpRateLimit{UserID: userID, LastFollowupSentAt: now, DailyCount: 1, ResetDate: today})
		return
	}
	if err != nil {
		return
	}
	if bucket.ResetDate != today {
		bucket.DailyCount = 0
		bucket.ResetDate = today
	}
	bucket.DailyCount++
	bucket.LastFollowupSentAt = now
	s.db.Save(&bucket)
}

func (s *Scheduler) onSendFailure(job models.FollowUpJob, sendErr error) {
	attempts := job.Attempts + 1
	if attempts >= models.MaxFollowUpAttempts {
		s.db.Model(&models.FollowUpJob{}).Where("id = ?", job.ID).
			Updates(map[string]interface{}{"status": models.FollowUpStatusFailed, "attempts": attempts})
		log.Printf("followup: job %d for %s exhausted retries: %v", job.ID, job.UserID, sendErr)
		return
	}
	backoff := time.Duration(attempts) * 10 * time.Minute
	s.db.Model(&models.FollowUpJob{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":        models.FollowUpStatusFailed,
			"attempts":      attempts,
			"scheduled_for": time.Now().UTC().Add(backoff),
		})
}

const chatwootUserPrefix = "chatwoot_"

// sourceForUser recovers which transport adapter owns userID from the
// namespacing convention C1's adapters apply when building InboundMessage.
func sourceForUser(userID string) string {
	if strings.HasPrefix(userID, chatwootUserPrefix) {
		return models.SourceChatwoot
	}
	return models.SourceWhatsApp
}
