package runner

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

type job struct {
	index    uint64
	admitted time.Time
}

// workerPool starts with a pre-allocated set of workers and grows on demand
// up to max. A submit that finds every worker busy at the ceiling is refused
// instead of blocking the arrival clock. Only one goroutine may submit and
// close.
//
// Worker slots are held on a weighted semaphore sized to the ceiling. Workers
// live until close, so slots are never released.
type workerPool struct {
	jobs    chan job
	slots   *semaphore.Weighted
	spawned atomic.Int64
	wg      sync.WaitGroup
	work    func(job)
	onSpawn func(total int64)
}

func newWorkerPool(pre, max int, work func(job), onSpawn func(int64)) *workerPool {
	if onSpawn == nil {
		onSpawn = func(int64) {}
	}
	p := &workerPool{
		jobs:    make(chan job),
		slots:   semaphore.NewWeighted(int64(max)),
		work:    work,
		onSpawn: onSpawn,
	}
	if pre > max {
		pre = max
	}
	p.slots.TryAcquire(int64(pre))
	for i := 0; i < pre; i++ {
		p.start()
	}
	p.spawned.Store(int64(pre))
	p.onSpawn(int64(pre))
	return p
}

func (p *workerPool) start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for j := range p.jobs {
			p.work(j)
		}
	}()
}

// grow adds one worker unless the ceiling has been reached.
func (p *workerPool) grow() bool {
	if !p.slots.TryAcquire(1) {
		return false
	}
	n := p.spawned.Add(1)
	p.start()
	p.onSpawn(n)
	return true
}

// submit hands j to an idle worker, spawning one if needed. It reports false
// when the pool is saturated.
func (p *workerPool) submit(j job) bool {
	select {
	case p.jobs <- j:
		return true
	default:
	}
	if !p.grow() {
		return false
	}
	p.jobs <- j
	return true
}

func (p *workerPool) size() int64 { return p.spawned.Load() }

// close stops accepting work; workers exit after their current job.
func (p *workerPool) close() { close(p.jobs) }

func (p *workerPool) wait() { p.wg.Wait() }
