package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ashvinar/memory-layer/internal/merr"
	"github.com/ashvinar/memory-layer/internal/store"
)

// job is one unit of work the pool processes: extract and persist
// memories for a single turn.
type job struct {
	turn store.Turn
}

// Pool is the bounded extraction queue described in the specification: W
// workers draining a channel of capacity Q. Enqueue returns Unavailable
// once the channel is full, so the ingestion handler can surface
// backpressure to the client without blocking the write path.
type Pool struct {
	jobs    chan job
	workers int
	process func(context.Context, store.Turn)
	log     *logrus.Entry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool starts workers goroutines draining a queue of the given
// capacity. process is called once per accepted turn; it never returns an
// error since it logs its own failures. Only the LLM extraction call is
// retried; embedding and persistence failures are logged and not retried.
func NewPool(workers, capacity int, log *logrus.Entry, process func(context.Context, store.Turn)) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan job, capacity),
		workers: workers,
		process: process,
		log:     log,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	return p
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(ctx, j.turn)
		}
	}
}

// Enqueue submits a turn for background extraction. It returns an
// Unavailable error if the queue is full.
func (p *Pool) Enqueue(t store.Turn) error {
	select {
	case p.jobs <- job{turn: t}:
		return nil
	default:
		return merr.New(merr.Unavailable, "extraction queue full")
	}
}

// Utilization returns the queue's current fill ratio in [0, 1]. No fill
// threshold changes how turns are accepted or extracted; only a full queue
// makes Enqueue fail.
func (p *Pool) Utilization() float64 {
	return float64(len(p.jobs)) / float64(cap(p.jobs))
}

// Close stops accepting new work and waits for queued jobs to drain, with
// an upper bound so shutdown is never indefinite.
func (p *Pool) Close() {
	close(p.jobs)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		p.log.Warn("extraction pool shutdown timed out, cancelling in-flight work")
		p.cancel()
		<-done
	}
}
