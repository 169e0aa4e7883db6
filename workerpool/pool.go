// Package workerpool implements C5: a dynamically sized pool of
// workers draining the priority queue, each running the full
// lease -> context -> gate -> infer -> write -> send -> ack cycle
// behind a circuit breaker around the agent call.
package workerpool

import (
	"context"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coralcommerce/dispatcher/agent"
	"github.com/coralcommerce/dispatcher/botstate"
	"github.com/coralcommerce/dispatcher/convstore"
	"github.com/coralcommerce/dispatcher/dispatch"
	"github.com/coralcommerce/dispatcher/errs"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/queue"
	"github.com/coralcommerce/dispatcher/telemetry"
	"github.com/coralcommerce/dispatcher/transport"
)

const (
	scaleInterval       = 30 * time.Second
	scaleCooldown       = 30 * time.Second
	targetLatency       = 10 * time.Second
	lowUtilizationRatio = 0.30
	drainTimeout        = 30 * time.Second
)

// Pool owns Nmin..Nmax workers pulling from a Queue, each reading/
// writing through a Store and respecting a bot-state Gate.
type Pool struct {
	q         *queue.Queue
	store     *convstore.Store
	gate      *botstate.Gate
	transport *transport.Registry
	runtime   agent.Runtime
	breaker   *CircuitBreaker
	mediator  dispatch.Mediator
	meter     *telemetry.Meter

	min, max int

	mu          sync.Mutex
	workers     map[int]context.CancelFunc
	nextWorker  int
	lastScaleAt time.Time

	busy        int64 // atomic count of workers currently processing
	p95Latency  atomic.Int64 // nanoseconds, crude snapshot updated per reply

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(q *queue.Queue, store *convstore.Store, gate *botstate.Gate, reg *transport.Registry, runtime agent.Runtime, min, max int) *Pool {
	if min <= 0 {
		min = 2
	}
	if max < min {
		max = min
	}
	return &Pool{
		q:         q,
		store:     store,
		gate:      gate,
		transport: reg,
		runtime:   runtime,
		breaker:   NewCircuitBreaker(5, 30*time.Second),
		mediator:  dispatch.NoopMediator{},
		min:       min,
		max:       max,
		workers:   make(map[int]context.CancelFunc),
		stopCh:    make(chan struct{}),
	}
}

func (p *Pool) SetMediator(m dispatch.Mediator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mediator = m
}

// SetMeter wires in C10's instruments. Left nil, Pool records nothing
// — useful for tests that don't care about telemetry.
func (p *Pool) SetMeter(m *telemetry.Meter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meter = m
}

// Start launches Nmin workers and the scaling supervisor loop.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	for i := 0; i < p.min; i++ {
		p.startWorkerLocked(ctx)
	}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.scaleLoop(ctx)
}

// Shutdown stops accepting new leases and waits up to drainTimeout for
// in-flight work before returning; pending queue items remain durable.
func (p *Pool) Shutdown() {
	close(p.stopCh)

	p.mu.Lock()
	for _, cancel := range p.workers {
		cancel()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		log.Println("workerpool: drain timeout exceeded, aborting remaining workers")
	}
}

func (p *Pool) startWorkerLocked(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	id := p.nextWorker
	p.nextWorker++
	p.workers[id] = cancel

	p.wg.Add(1)
	go p.runWorker(ctx, id)
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	workerID := "worker-" + strconv.Itoa(id)

	for {
		item, err := p.q.Lease(ctx, workerID)
		if err != nil {
			return
		}
		atomic.AddInt64(&p.busy, 1)
		p.process(ctx, item)
		atomic.AddInt64(&p.busy, -1)
	}
}

func (p *Pool) process(ctx context.Context, item *models.QueuedItem) {
	start := time.Now()

	ctx, span := telemetry.Tracer().Start(ctx, "workerpool.process")
	defer span.End()

	if p.gate.IsPaused(item.UserID) {
		p.q.Ack(item, true, "")
		return
	}

	cc, err := p.store.Get(item.UserID)
	if err != nil {
		p.q.Ack(item, false, err.Error())
		return
	}

	if !p.breaker.Allow() {
		p.q.Ack(item, false, p.breaker.Err().Error())
		return
	}

	inferCtx, cancel := context.WithTimeout(ctx, agent.Timeout)
	reply, err := p.runtime.InferReply(inferCtx, item.UserID, cc, item.MessageContent)
	cancel()

	if p.meter != nil {
		p.meter.InferReplyLatency(ctx, float64(time.Since(start).Milliseconds()))
	}

	if err != nil {
		p.breaker.RecordFailure()
		kind, _ := errs.KindOf(err)
		permanent := kind == errs.PermanentAgent || kind == errs.PermanentTransport
		p.q.Ack(item, false, err.Error())
		if permanent {
			p.sendApology(ctx, item.UserID, item.Source)
		}
		return
	}
	p.breaker.RecordSuccess()

	now := time.Now().UTC()
	updated, err := p.store.Update(item.UserID, func(c *models.ConversationContext) {
		if turnsAlreadyAppended(c, item.QueueID) {
			c.LastInteraction = now
			return
		}
		c.AppendTurn(models.Turn{ID: item.QueueID, Role: "user", Text: item.MessageContent, At: now})
		c.AppendTurn(models.Turn{ID: item.QueueID, Role: "assistant", Text: reply, At: now})
		c.LastInteraction = now
	})
	if err != nil {
		p.q.Ack(item, false, err.Error())
		return
	}

	if err := p.transport.SendOutbound(ctx, item.Source, item.UserID, reply); err != nil {
		if p.meter != nil {
			p.meter.SendResult(ctx, item.Source, false)
		}
		kind, _ := errs.KindOf(err)
		if kind == errs.PermanentTransport {
			// already attempted delivery; nothing more to retry for this
			// item, so this Ack moves it straight to dead_letter
			item.Attempts = models.MaxQueueAttempts - 1
		}
		p.q.Ack(item, false, err.Error())
		return
	}
	if p.meter != nil {
		p.meter.SendResult(ctx, item.Source, true)
	}

	p.q.Ack(item, true, "")
	p.p95Latency.Store(int64(time.Since(start)))
	p.mediator.OnUserActivity(item.UserID, updated)
}

// turnsAlreadyAppended reports whether queueID's user/assistant pair is
// already in history — a re-leased item (e.g. after a transport send
// failure) must not double-append on retry.
func turnsAlreadyAppended(c *models.ConversationContext, queueID string) bool {
	if queueID == "" {
		return false
	}
	turns := c.InteractionHistory.Value
	for i := len(turns) - 1; i >= 0 && i >= len(turns)-2; i-- {
		if turns[i].ID == queueID {
			return true
		}
	}
	return false
}

func (p *Pool) sendApology(ctx context.Context, userID, source string) {
	_ = p.transport.SendOutbound(ctx, source, userID, errs.DeadLetterApology)
}

// Stats is a point-in-time snapshot for C10/health.
type Stats struct {
	Size      int
	Busy      int64
	QueueSize int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	size := len(p.workers)
	p.mu.Unlock()
	return Stats{
		Size:      size,
		Busy:      atomic.LoadInt64(&p.busy),
		QueueSize: p.q.Depth(),
	}
}
