package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralcommerce/dispatcher/agent"
	"github.com/coralcommerce/dispatcher/botstate"
	"github.com/coralcommerce/dispatcher/convstore"
	"github.com/coralcommerce/dispatcher/errs"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/queue"
	"github.com/coralcommerce/dispatcher/transport"
)

type recordingMediator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingMediator) OnUserActivity(userID string, cc models.ConversationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
}

func (r *recordingMediator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// flakyTransport fails SendOutbound until its configured attempt
// count is reached, so retries of the same queue item can be
// exercised without a real network dependency.
type flakyTransport struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	lastReply string
}

func (f *flakyTransport) Source() string { return models.SourceTest }

func (f *flakyTransport) ParseWebhook(raw []byte) (transport.Envelope, error) {
	return transport.Envelope{Kind: transport.KindIgnored}, nil
}

func (f *flakyTransport) SendOutbound(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failUntil {
		return errs.New(errs.TransientTransport, "simulated send failure")
	}
	f.lastReply = text
	return nil
}

type erroringRuntime struct{ err error }

func (e erroringRuntime) InferReply(ctx context.Context, userID string, cc models.ConversationContext, text string) (string, error) {
	return "", e.err
}

func newTestPool(t *testing.T, runtime agent.Runtime) (*Pool, *queue.Queue, *transport.Test) {
	t.Helper()
	q := queue.New(nil)
	store := convstore.New(nil, convstore.NewInMemoryCache())
	gate := botstate.New(convstore.NewInMemoryCache(), nil)
	tr := transport.NewTest()
	reg := transport.NewRegistry(tr)
	p := New(q, store, gate, reg, runtime, 1, 1)
	return p, q, tr
}

func TestProcessSuccessfulReplySendsAndNotifiesMediator(t *testing.T) {
	p, q, tr := newTestPool(t, agent.NewStub())
	mediator := &recordingMediator{}
	p.SetMediator(mediator)

	item := &models.QueuedItem{UserID: "u1", MessageContent: "hola", Source: models.SourceTest, Priority: models.PriorityNormal}
	_, err := q.Submit(item)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	leased, err := q.Lease(ctx, "worker-1")
	require.NoError(t, err)

	p.process(ctx, leased)

	reply, ok := tr.TakeReply("u1")
	assert.True(t, ok)
	assert.NotEmpty(t, reply)
	assert.Equal(t, 1, mediator.count())
}

func TestProcessPausedUserSkipsWithoutSending(t *testing.T) {
	p, q, tr := newTestPool(t, agent.NewStub())
	p.gate.Pause("u1", "handed off", "operator1", time.Hour)

	item := &models.QueuedItem{UserID: "u1", MessageContent: "hola", Source: models.SourceTest, Priority: models.PriorityNormal}
	_, err := q.Submit(item)
	require.NoError(t, err)

	ctx := context.Background()
	leased, err := q.Lease(ctx, "worker-1")
	require.NoError(t, err)

	p.process(ctx, leased)

	_, ok := tr.TakeReply("u1")
	assert.False(t, ok)
	assert.Equal(t, models.QueueStatusCompleted, leased.Status)
}

func TestProcessPermanentAgentErrorSendsApology(t *testing.T) {
	p, q, tr := newTestPool(t, erroringRuntime{err: errs.New(errs.PermanentAgent, "bad input")})

	item := &models.QueuedItem{UserID: "u1", MessageContent: "hola", Source: models.SourceTest, Priority: models.PriorityNormal}
	_, err := q.Submit(item)
	require.NoError(t, err)

	ctx := context.Background()
	leased, err := q.Lease(ctx, "worker-1")
	require.NoError(t, err)

	p.process(ctx, leased)

	reply, ok := tr.TakeReply("u1")
	assert.True(t, ok)
	assert.Equal(t, errs.DeadLetterApology, reply)
}

func TestProcessTransientAgentErrorDoesNotSendApology(t *testing.T) {
	p, q, tr := newTestPool(t, erroringRuntime{err: errs.New(errs.TransientAgent, "timeout")})

	item := &models.QueuedItem{UserID: "u1", MessageContent: "hola", Source: models.SourceTest, Priority: models.PriorityNormal}
	_, err := q.Submit(item)
	require.NoError(t, err)

	ctx := context.Background()
	leased, err := q.Lease(ctx, "worker-1")
	require.NoError(t, err)

	p.process(ctx, leased)

	_, ok := tr.TakeReply("u1")
	assert.False(t, ok)
}

func TestProcessRetryAfterSendFailureDoesNotDoubleAppendTurns(t *testing.T) {
	q := queue.New(nil)
	store := convstore.New(nil, convstore.NewInMemoryCache())
	gate := botstate.New(convstore.NewInMemoryCache(), nil)
	flaky := &flakyTransport{failUntil: 1}
	reg := transport.NewRegistry(flaky)
	p := New(q, store, gate, reg, agent.NewStub(), 1, 1)

	item := &models.QueuedItem{UserID: "u1", MessageContent: "hola", Source: models.SourceTest, Priority: models.PriorityNormal}
	_, err := q.Submit(item)
	require.NoError(t, err)

	ctx := context.Background()
	leased, err := q.Lease(ctx, "worker-1")
	require.NoError(t, err)

	// first attempt: turns are written before the send is attempted,
	// then the send fails and the item is requeued with the same QueueID
	p.process(ctx, leased)
	cc, err := store.Get("u1")
	require.NoError(t, err)
	require.Len(t, cc.InteractionHistory.Value, 2)

	// second attempt: same underlying item retried, send now succeeds —
	// must not append the pair a second time
	p.process(ctx, leased)
	cc, err = store.Get("u1")
	require.NoError(t, err)
	require.Len(t, cc.InteractionHistory.Value, 2, "exactly one user/assistant pair, not duplicated across retries")
	assert.Equal(t, leased.QueueID, cc.InteractionHistory.Value[0].ID)
	assert.Equal(t, leased.QueueID, cc.InteractionHistory.Value[1].ID)
}

func TestStatsReportsPoolSize(t *testing.T) {
	p, _, _ := newTestPool(t, agent.NewStub())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Shutdown()

	stats := p.Stats()
	assert.Equal(t, 1, stats.Size)
}
