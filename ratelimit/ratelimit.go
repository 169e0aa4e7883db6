// Package ratelimit implements C2: duplicate suppression and the
// per-user/per-IP/global token-bucket ceilings admitted inbound
// messages must clear before reaching the burst buffer.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/telemetry"
)

type Decision int

const (
	Admit Decision = iota
	RejectDuplicate
	RejectRate
)

type Limiter struct {
	dedupeTTL time.Duration

	mu     sync.Mutex
	dedupe map[string]time.Time // userId+":"+hash -> expiresAt

	userBuckets sync.Map // userId -> *rate.Limiter
	ipBuckets   sync.Map // ip -> *rate.Limiter
	global      *rate.Limiter

	userPerMinute int
	ipPerMinute   int

	meter *telemetry.Meter
}

// SetMeter wires in C10's instruments. Left nil, Limiter records nothing.
func (l *Limiter) SetMeter(m *telemetry.Meter) { l.meter = m }

func New(userPerMinute, ipPerMinute, globalPerMinute int) *Limiter {
	return &Limiter{
		dedupeTTL:     10 * time.Minute,
		dedupe:        make(map[string]time.Time),
		global:        rate.NewLimiter(rate.Limit(globalPerMinute)/60, globalPerMinute),
		userPerMinute: userPerMinute,
		ipPerMinute:   ipPerMinute,
	}
}

// Admit evaluates dedup then the three rate buckets in order: user, ip,
// then global (VIP bypasses only the per-user bucket).
func (l *Limiter) Admit(msg models.InboundMessage, ip string, vip bool) Decision {
	if l.isDuplicate(msg) {
		l.record("duplicate", false)
		return RejectDuplicate
	}

	if !vip {
		if !l.bucketFor(&l.userBuckets, msg.UserID, l.userPerMinute).Allow() {
			l.record("rate:user", false)
			return RejectRate
		}
	}
	if ip != "" {
		if !l.bucketFor(&l.ipBuckets, ip, l.ipPerMinute).Allow() {
			l.record("rate:ip", false)
			return RejectRate
		}
	}
	if !l.global.Allow() {
		l.record("rate:global", false)
		return RejectRate
	}

	l.markSeen(msg)
	l.record("", true)
	return Admit
}

func (l *Limiter) record(rejectReason string, admitted bool) {
	if l.meter == nil {
		return
	}
	ctx := context.Background()
	if admitted {
		l.meter.InboundAdmitted(ctx, "")
		return
	}
	l.meter.InboundRejected(ctx, rejectReason)
}

func (l *Limiter) bucketFor(m *sync.Map, key string, perMinute int) *rate.Limiter {
	if v, ok := m.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(perMinute)/60, perMinute)
	actual, _ := m.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}

func (l *Limiter) isDuplicate(msg models.InboundMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictExpiredLocked()

	key := msg.UserID + ":" + msg.MessageHash()
	_, seen := l.dedupe[key]
	return seen
}

func (l *Limiter) markSeen(msg models.InboundMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := msg.UserID + ":" + msg.MessageHash()
	l.dedupe[key] = time.Now().Add(l.dedupeTTL)
}

func (l *Limiter) evictExpiredLocked() {
	now := time.Now()
	for k, exp := range l.dedupe {
		if now.After(exp) {
			delete(l.dedupe, k)
		}
	}
}
