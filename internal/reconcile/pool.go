// Package reconcile repairs the gap between a confirmed on-chain transfer
// and the project's funds-raised counter. Receipts stuck in the confirmed
// state are re-driven through a small worker pool until the counter catches
// up and the receipt flips to reconciled.
package reconcile

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Job is a unit of reconciliation work.
type Job interface {
	Execute() error
	ID() string
}

// Worker pulls jobs from its own channel after registering it with the
// dispatcher's pool.
type Worker struct {
	id         int
	workerPool chan chan Job
	jobChannel chan Job
	quit       chan bool
	wg         *sync.WaitGroup
	log        *logrus.Logger
}

// NewWorker creates a worker bound to the dispatcher's pool.
func NewWorker(id int, workerPool chan chan Job, wg *sync.WaitGroup, log *logrus.Logger) Worker {
	return Worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan Job),
		quit:       make(chan bool),
		wg:         wg,
		log:        log,
	}
}

// Start makes the worker listen for jobs on its channel.
func (w Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				entry := w.log.WithFields(logrus.Fields{"worker": w.id, "job": job.ID()})
				entry.Info("Reconciliation job started")
				if err := job.Execute(); err != nil {
					// Leave the receipt as-is; the next sweep picks it up.
					entry.WithError(err).Warn("Reconciliation job failed")
				} else {
					entry.Info("Reconciliation job finished")
				}
			case <-w.quit:
				return
			}
		}
	}()
}

// Stop signals the worker to exit after its current job.
func (w Worker) Stop() {
	go func() {
		w.quit <- true
	}()
}

// Dispatcher fans jobs out to a fixed pool of workers through a bounded
// queue.
type Dispatcher struct {
	maxWorkers int
	workerPool chan chan Job
	jobQueue   chan Job
	workers    []Worker
	wg         sync.WaitGroup
	quit       chan bool
	stopped    chan struct{}
	log        *logrus.Logger
}

// NewDispatcher creates a dispatcher with the given worker count and queue
// capacity.
func NewDispatcher(maxWorkers, queueSize int, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		maxWorkers: maxWorkers,
		workerPool: make(chan chan Job, maxWorkers),
		jobQueue:   make(chan Job, queueSize),
		workers:    make([]Worker, 0, maxWorkers),
		quit:       make(chan bool),
		stopped:    make(chan struct{}),
		log:        log,
	}
}

// Run starts the workers and the dispatch loop.
func (d *Dispatcher) Run() {
	for i := 1; i <= d.maxWorkers; i++ {
		worker := NewWorker(i, d.workerPool, &d.wg, d.log)
		d.workers = append(d.workers, worker)
		worker.Start()
	}
	go d.dispatch()
	d.log.WithField("workers", d.maxWorkers).Info("Reconciliation dispatcher running")
}

func (d *Dispatcher) dispatch() {
	for {
		select {
		case job := <-d.jobQueue:
			go func(job Job) {
				// During shutdown a worker may have quit after registering
				// its channel, so both waits watch stopped. A dropped job is
				// fine: the receipt is still unreconciled and the next sweep
				// requeues it.
				select {
				case jobChannel := <-d.workerPool:
					select {
					case jobChannel <- job:
					case <-d.stopped:
						d.log.WithField("job", job.ID()).Warn("Dispatcher stopping, job deferred to next sweep")
					}
				case <-d.stopped:
					d.log.WithField("job", job.ID()).Warn("Dispatcher stopping, job deferred to next sweep")
				}
			}(job)
		case <-d.quit:
			return
		}
	}
}

// Submit queues a job without blocking. A full queue is not an error: the
// receipt stays unreconciled and the next sweep retries it.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case d.jobQueue <- job:
		return true
	default:
		d.log.WithField("job", job.ID()).Warn("Reconciliation queue full, job deferred to next sweep")
		return false
	}
}

// Stop shuts down the dispatch loop and waits for workers to finish their
// current jobs.
func (d *Dispatcher) Stop() {
	close(d.stopped)
	d.quit <- true
	for _, worker := range d.workers {
		worker.Stop()
	}
	d.wg.Wait()
	d.log.Info("Reconciliation dispatcher stopped")
}
