package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralcommerce/dispatcher/config"
	"github.com/coralcommerce/dispatcher/models"
)

func testConfig() config.Configuration {
	return config.Configuration{
		WorkerPoolMin:       1,
		WorkerPoolMax:       1,
		QueueSoftCap:        10,
		FollowUpTZ:          "UTC",
		RateUserPerMinute:   10,
		RateIPPerMinute:     10,
		RateGlobalPerMinute: 100,
		CoalesceWindow:      10 * time.Millisecond,
		CoalesceMaxWait:     20 * time.Millisecond,
	}
}

func TestNewWiresEveryComponent(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Gate)
	assert.NotNil(t, a.Limiter)
	assert.NotNil(t, a.Burst)
	assert.NotNil(t, a.Queue)
	assert.NotNil(t, a.Pool)
	assert.NotNil(t, a.Transport)
	assert.NotNil(t, a.Supervisory)
	assert.NotNil(t, a.Followup)
	assert.NotNil(t, a.Runtime)
	assert.NotNil(t, a.Meter)
	assert.NotNil(t, a.Health)
}

func TestOnCoalescedSubmitsToQueue(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	a.onCoalesced(models.InboundMessage{UserID: "u1", Text: "hola", Source: models.SourceTest})
	assert.Equal(t, 1, a.Queue.Depth())
}

func TestOnCoalescedAssignsPriorityFromText(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	a.onCoalesced(models.InboundMessage{UserID: "u1", Text: "tengo un problema urgente", Source: models.SourceTest})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	leased, err := a.Queue.Lease(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, leased.Priority)
}

func TestOnCoalescedAssignsUrgentForVIPUser(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	_, err = a.Store.Update("vip1", func(cc *models.ConversationContext) {
		cc.VIP = true
	})
	require.NoError(t, err)

	a.onCoalesced(models.InboundMessage{UserID: "vip1", Text: "hola", Source: models.SourceTest})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	leased, err := a.Queue.Lease(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, leased.Priority)
}

func TestHealthChecksFailBeforeStart(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	summary := a.Health.Check(context.Background())
	assert.False(t, summary.Healthy, "worker pool has no workers before Start")
}

func TestHealthChecksPassAfterStart(t *testing.T) {
	a, err := New(testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer a.Shutdown()

	summary := a.Health.Check(context.Background())
	assert.True(t, summary.Healthy)
}

func TestHealthChecksFlagQueueBacklog(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSoftCap = 1
	a, err := New(cfg, nil)
	require.NoError(t, err)

	a.onCoalesced(models.InboundMessage{UserID: "u1", Text: "a", Source: models.SourceTest})
	a.onCoalesced(models.InboundMessage{UserID: "u2", Text: "b", Source: models.SourceTest})

	summary := a.Health.Check(context.Background())
	assert.False(t, summary.Healthy)

	found := false
	for _, r := range summary.Checks {
		if r.Name == "queue_depth" {
			found = true
			assert.False(t, r.Healthy)
		}
	}
	assert.True(t, found, "expected a queue_depth check report")
}
