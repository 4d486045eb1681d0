package travel

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"bestoffer.kz/travel/models"
)

var (
	ErrDispatcherStopped = errors.New("event dispatcher stopped")
	ErrDispatcherBusy    = errors.New("event queue is full")
)

// Dispatcher hands queued events to a fixed set of workers.
type Dispatcher struct {
	WorkerPool chan chan WorkRequest
	maxWorkers int
	jobQueue   chan WorkRequest
	process    EventProcessor
	workers    []Worker
	stop       chan struct{}
	done       chan struct{}
	once       sync.Once
	logger     *zap.Logger
}

func NewDispatcher(maxWorkers int, jobQueueSize int, process EventProcessor, logger *zap.Logger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{
		WorkerPool: make(chan chan WorkRequest, maxWorkers),
		maxWorkers: maxWorkers,
		jobQueue:   make(chan WorkRequest, jobQueueSize),
		process:    process,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (d *Dispatcher) Run() {
	for i := 0; i < d.maxWorkers; i++ {
		worker := NewWorker(i+1, d.WorkerPool, d.process, d.logger)
		worker.Start()
		d.workers = append(d.workers, worker)
	}

	go d.dispatch()
}

// Submit queues event, blocking while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, event *models.Event) error {
	select {
	case <-d.stop:
		return ErrDispatcherStopped
	default:
	}

	select {
	case d.jobQueue <- WorkRequest{Event: event, Ctx: ctx}:
		return nil
	case <-d.stop:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues event only if there is room right now.
func (d *Dispatcher) TrySubmit(ctx context.Context, event *models.Event) error {
	select {
	case <-d.stop:
		return ErrDispatcherStopped
	default:
	}

	select {
	case d.jobQueue <- WorkRequest{Event: event, Ctx: ctx}:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) dispatch() {
	defer close(d.done)

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.WorkerPool:
				jobChannel <- job
			case <-d.stop:
				return
			}
		case <-d.stop:
			return
		}
	}
}

// Stop lets running jobs finish. Events still queued are dropped; they stay
// unprocessed in the ledger.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stop)
		if len(d.workers) == 0 {
			return
		}
		<-d.done

		var wg sync.WaitGroup
		for _, worker := range d.workers {
			wg.Add(1)
			go func(w Worker) {
				defer wg.Done()
				w.Stop()
			}(worker)
		}
		wg.Wait()

		if pending := len(d.jobQueue); pending > 0 {
			d.logger.Warn("dispatcher stopped with queued events", zap.Int("pending", pending))
		}
	})
}
