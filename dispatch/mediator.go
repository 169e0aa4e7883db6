// Package dispatch defines the narrow interface that breaks the
// natural C5 (worker pool) <-> C9 (follow-up scheduler) cycle: the
// worker pool needs to notify the scheduler of activity, and the
// scheduler would otherwise need to reach back into the pool to send.
// Both directions are satisfied without either package importing the
// other's concrete type.
package dispatch

import (
	"github.com/coralcommerce/dispatcher/models"
)

// Mediator is what C5 holds a reference to and calls after every
// successful reply. C9's scheduler implements it; C5 never imports the
// followup package directly.
type Mediator interface {
	// OnUserActivity resets the follow-up cadence for userID using the
	// just-updated context.
	OnUserActivity(userID string, cc models.ConversationContext)
}

// NoopMediator is wired in before the real scheduler exists (e.g. in
// tests) so the worker pool never needs a nil check.
type NoopMediator struct{}

func (NoopMediator) OnUserActivity(userID string, cc models.ConversationContext) {}
