package followup

import (
	"time"

	"github.com/coralcommerce/dispatcher/models"
)

// reconcile runs once at startup: jobs left in processing by a crashed
// previous process go back to pending, and any pending job whose
// scheduledFor has drifted into an invalid window gets nudged forward
// so the first tick doesn't immediately bounce it through the guard
// chain and back.
func (s *Scheduler) reconcile() error {
	if s.db == nil {
		return nil
	}

	if err := s.db.Model(&models.FollowUpJob{}).
		Where("status = ?", models.FollowUpStatusProcessing).
		Update("status", models.FollowUpStatusPending).Error; err != nil {
		return err
	}

	var overdue []models.FollowUpJob
	if err := s.db.Where("status = ? AND scheduled_for <= ?", models.FollowUpStatusPending, time.Now().UTC()).
		Find(&overdue).Error; err != nil {
		return err
	}

	for _, job := range overdue {
		now := time.Now().In(s.cfg.TZ)
		if s.cfg.AllowedWeekdays[now.Weekday()] && (s.cfg.EndHour <= s.cfg.StartHour || (now.Hour() >= s.cfg.StartHour && now.Hour() < s.cfg.EndHour)) {
			continue // within window already; the next tick will pick it up
		}
		next := s.nextValidWindow(now)
		s.db.Model(&models.FollowUpJob{}).Where("id = ?", job.ID).
			Update("scheduled_for", next.UTC())
	}

	return nil
}
