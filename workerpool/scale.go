package workerpool

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// scaleLoop runs every scaleInterval, growing the pool when the queue
// is backed up or latency is high, shrinking it when idle for three
// consecutive windows, always respecting scaleCooldown between moves.
func (p *Pool) scaleLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(scaleInterval)
	defer ticker.Stop()

	idleWindows := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			size := len(p.workers)
			cooledDown := time.Since(p.lastScaleAt) >= scaleCooldown
			p.mu.Unlock()

			depth := p.q.Depth()
			busy := p.busyCount()
			utilization := 0.0
			if size > 0 {
				utilization = float64(busy) / float64(size)
			}
			p95 := time.Duration(p.p95Latency.Load())

			switch {
			case depth > 2*size || p95 > targetLatency:
				idleWindows = 0
				if cooledDown && size < p.max {
					p.scaleUp(ctx)
				}
			case depth == 0 && utilization < lowUtilizationRatio:
				idleWindows++
				if idleWindows >= 3 && cooledDown && size > p.min {
					p.scaleDown()
					idleWindows = 0
				}
			default:
				idleWindows = 0
			}
		}
	}
}

func (p *Pool) busyCount() int64 {
	return atomic.LoadInt64(&p.busy)
}

func (p *Pool) scaleUp(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startWorkerLocked(ctx)
	p.lastScaleAt = time.Now()
	log.Printf("workerpool: scaled up to %d workers", len(p.workers))
}

func (p *Pool) scaleDown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cancel := range p.workers {
		cancel()
		delete(p.workers, id)
		break
	}
	p.lastScaleAt = time.Now()
	log.Printf("workerpool: scaled down to %d workers", len(p.workers))
}
