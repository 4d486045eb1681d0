package travel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bestoffer.kz/travel/models"
)

// EventProcessor handles one event; it is BestOffer.ProcessEvent in
// production.
type EventProcessor func(context.Context, *models.Event) error

type WorkRequest struct {
	Event *models.Event
	Ctx   context.Context
}

type Worker struct {
	ID         int
	WorkerPool chan chan WorkRequest
	JobChannel chan WorkRequest
	quit       chan struct{}
	done       chan struct{}
	process    EventProcessor
	logger     *zap.Logger
}

func NewWorker(id int, workerPool chan chan WorkRequest, process EventProcessor, logger *zap.Logger) Worker {
	return Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan WorkRequest),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		process:    process,
		logger:     logger,
	}
}

func (w Worker) Start() {
	go func() {
		defer close(w.done)
		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.handle(job)
			case <-w.quit:
				return
			}
		}
	}()
}

func (w Worker) handle(job WorkRequest) {
	fields := []zap.Field{
		zap.Int("worker_id", w.ID),
		zap.String("event_type", string(job.Event.Type)),
		zap.String("event_id", job.Event.ID.String()),
	}

	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("event processing panicked", append(fields, zap.String("panic", fmt.Sprint(p)))...)
		}
	}()

	if err := w.process(job.Ctx, job.Event); err != nil {
		w.logger.Error("failed to process event", append(fields, zap.Error(err))...)
		return
	}
	w.logger.Debug("event processed", fields...)
}

// Stop waits for the job in progress, if any.
func (w Worker) Stop() {
	close(w.quit)
	<-w.done
}
