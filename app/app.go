// Package app wires every component into a single process-wide state
// object, constructed once in main and threaded through gin via a
// context accessor — the same pattern db/context.go uses for the
// shared *gorm.DB, generalized to the rest of the dependency graph so
// no package needs a module-level global.
package app

import (
	"context"
	"log"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/coralcommerce/dispatcher/agent"
	"github.com/coralcommerce/dispatcher/botstate"
	"github.com/coralcommerce/dispatcher/burst"
	"github.com/coralcommerce/dispatcher/config"
	"github.com/coralcommerce/dispatcher/convstore"
	dbpkg "github.com/coralcommerce/dispatcher/db"
	"github.com/coralcommerce/dispatcher/followup"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/queue"
	"github.com/coralcommerce/dispatcher/ratelimit"
	"github.com/coralcommerce/dispatcher/supervisory"
	"github.com/coralcommerce/dispatcher/telemetry"
	"github.com/coralcommerce/dispatcher/transport"
	"github.com/coralcommerce/dispatcher/workerpool"
)

// App holds every wired component. Nothing in this tree is a package
// level global; handlers reach it via FromContext.
type App struct {
	Config config.Configuration

	DB    *gorm.DB
	Cache convstore.Cache

	Store       *convstore.Store
	Gate        *botstate.Gate
	Limiter     *ratelimit.Limiter
	Burst       *burst.Buffer
	Queue       *queue.Queue
	Pool        *workerpool.Pool
	Transport   *transport.Registry
	Supervisory *supervisory.Handler
	Followup    *followup.Scheduler
	Runtime     agent.Runtime

	Meter  *telemetry.Meter
	Health *telemetry.Health
}

// New wires every component from cfg. db must already be migrated
// (see db.Migrate) and connected.
func New(cfg config.Configuration, database *gorm.DB) (*App, error) {
	meter, err := telemetry.New()
	if err != nil {
		return nil, err
	}

	cache := convstore.Cache(convstore.NewInMemoryCache())
	store := convstore.New(database, cache)
	gate := botstate.New(cache, database)

	limiter := ratelimit.New(cfg.RateUserPerMinute, cfg.RateIPPerMinute, cfg.RateGlobalPerMinute)
	limiter.SetMeter(meter)

	reg := transport.NewRegistry(
		transport.NewWhatsApp(cfg.WhatsAppBaseURL, cfg.WhatsAppInstance, cfg.WhatsAppAPIKey),
		transport.NewChatwoot(cfg.ChatwootBaseURL, cfg.ChatwootAccountID, cfg.ChatwootAccessToken),
		transport.NewTest(),
	)

	q := queue.New(database)
	q.SetMeter(meter)

	pool := workerpool.New(q, store, gate, reg, agent.NewStub(), cfg.WorkerPoolMin, cfg.WorkerPoolMax)
	pool.SetMeter(meter)

	sup := supervisory.New(gate, reg)

	fcfg := followup.Config{
		StartHour:          cfg.FollowUpStartHour,
		EndHour:            cfg.FollowUpEndHour,
		MigrationModeUntil: cfg.MigrationModeUntil,
	}
	if loc, err := time.LoadLocation(cfg.FollowUpTZ); err == nil {
		fcfg.TZ = loc
	}
	fup := followup.New(database, gate, store, reg, fcfg)
	fup.SetMeter(meter)
	pool.SetMediator(fup)

	var burstBuf *burst.Buffer

	a := &App{
		Config:      cfg,
		DB:          database,
		Cache:       cache,
		Store:       store,
		Gate:        gate,
		Limiter:     limiter,
		Queue:       q,
		Pool:        pool,
		Transport:   reg,
		Supervisory: sup,
		Followup:    fup,
		Runtime:     agent.NewStub(),
		Meter:       meter,
	}

	burstBuf = burst.New(cfg.CoalesceWindow, cfg.CoalesceMaxWait, a.onCoalesced)
	a.Burst = burstBuf

	a.Health = telemetry.NewHealth()
	a.registerHealthChecks()

	return a, nil
}

// onCoalesced is C3's emit callback: assign priority and submit to C4.
// Supervisory events never reach here — they're routed straight to
// Supervisory.Handle by the webhook controller — so supervisoryCommand
// is always false for this call site.
func (a *App) onCoalesced(msg models.InboundMessage) {
	cc, _ := a.Store.Get(msg.UserID)
	priority := models.AssignPriority(msg.Text, cc.VIP, false, false)
	item := &models.QueuedItem{
		UserID:         msg.UserID,
		MessageContent: msg.Text,
		MessageHash:    msg.MessageHash(),
		Source:         msg.Source,
		ConversationID: msg.ConversationID,
		Priority:       priority,
	}
	if _, err := a.Queue.Submit(item); err != nil {
		log.Printf("app: submit queued item for %s: %v", msg.UserID, err)
	}
}

func (a *App) registerHealthChecks() {
	a.Health.Register("database", func(ctx context.Context) error {
		if a.DB == nil {
			return nil
		}
		return a.DB.DB().PingContext(ctx)
	})
	a.Health.Register("cache", func(ctx context.Context) error {
		if a.Cache != nil && !a.Cache.Available() {
			return errUnavailable
		}
		return nil
	})
	a.Health.Register("worker_pool", func(ctx context.Context) error {
		stats := a.Pool.Stats()
		if stats.Size == 0 {
			return errUnavailable
		}
		return nil
	})
	a.Health.Register("queue_depth", func(ctx context.Context) error {
		if a.Queue.Depth() > a.Config.QueueSoftCap {
			return errQueueBacklogged
		}
		return nil
	})
}

// Start launches the worker pool and the follow-up scheduler, and
// recovers anything left mid-flight by a previous process.
func (a *App) Start(ctx context.Context) error {
	if err := queue.RecoverStaleProcessing(a.DB); err != nil {
		log.Printf("app: recover stale queue items: %v", err)
	}
	if err := a.Queue.LoadPending(); err != nil {
		log.Printf("app: load pending queue items: %v", err)
	}

	a.Pool.Start(ctx)
	return a.Followup.Start(ctx)
}

// Shutdown drains the worker pool and stops the follow-up ticker.
func (a *App) Shutdown() {
	a.Pool.Shutdown()
	a.Followup.Stop()
}
