package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"arkline/internal/logging"
	"arkline/internal/records"
	"arkline/internal/services"
)

const genericFailureLog = "An unexpected issue occurred. Please try again later, and contact your admin if the issue persists."

// Pool runs dispatched steps on a bounded set of worker goroutines. Each job
// moves its step to in_progress, executes the handler, persists the outcome,
// and resumes the pipeline when the step completed.
type Pool struct {
	dispatcher *Dispatcher
	workers    int
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool builds a worker pool over the dispatcher's job queue.
func NewPool(dispatcher *Dispatcher, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		dispatcher: dispatcher,
		workers:    workers,
		logger:     logging.WithComponent(logger, "workers"),
	}
}

// Start launches the workers. They exit when the context is canceled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-p.dispatcher.queue:
					p.runJob(ctx, j)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runJob(ctx context.Context, j job) {
	ctx = services.WithRecordID(ctx, j.recordID)
	ctx = services.WithCorrelationID(ctx, uuid.NewString())

	store := p.dispatcher.store
	step, err := store.GetStep(ctx, j.stepID)
	if err != nil {
		p.logger.Error("load step", logging.Int64(logging.FieldRecordID, j.recordID), logging.Error(err))
		return
	}
	if step == nil {
		p.logger.Warn("dispatched step vanished", logging.Int64(logging.FieldRecordID, j.recordID))
		return
	}
	if step.Status != records.StatusQueued {
		// Stale job: the step was restarted or resolved since dispatch.
		p.logger.Debug("skipping stale job",
			logging.Int64(logging.FieldRecordID, j.recordID),
			logging.String(logging.FieldStep, string(step.Type)),
			logging.String("status", string(step.Status)))
		return
	}

	ctx = services.WithStep(ctx, string(step.Type))
	logger := logging.WithContext(ctx, p.logger)

	record, err := store.GetRecord(ctx, j.recordID)
	if err != nil || record == nil {
		logger.Error("load record for step", logging.Error(err))
		return
	}

	handler, ok := p.dispatcher.registry.Resolve(step.Type)
	if !ok {
		logger.Error("no handler bound at execution time")
		if err := store.SetStepStatus(ctx, step.ID, records.StatusError, fmt.Sprintf("No handler is configured for step %s.", step.Type)); err != nil {
			logger.Error("persist missing-handler failure", logging.Error(err))
		}
		return
	}

	claimed, err := store.MoveStepStatus(ctx, step.ID, records.StatusQueued, records.StatusInProgress, "")
	if err != nil {
		logger.Error("persist in_progress transition", logging.Error(err))
		return
	}
	if !claimed {
		logger.Debug("step claimed elsewhere, dropping job")
		return
	}
	step.Status = records.StatusInProgress
	step.Log = ""

	logger.Info("step started", logging.String(logging.FieldEventType, "step_start"))

	execErr := executeHandler(ctx, handler, record, step)

	final := step.Status
	finalLog := step.Log
	switch {
	case execErr != nil:
		// Unexpected failure: generic message for the step log, full
		// detail only in the operational log.
		final = records.StatusError
		finalLog = genericFailureLog
		logger.Error("step failed unexpectedly",
			logging.String(logging.FieldEventType, "step_failure"),
			logging.Error(execErr))
	case step.Status == records.StatusInProgress:
		// Handler reported nothing: success. Human-validation steps pause
		// for confirmation instead of completing.
		if step.HumanValidation {
			final = records.StatusAwaitingHumanValidation
		} else {
			final = records.StatusComplete
		}
		finalLog = ""
	case step.Status == records.StatusError:
		logger.Warn("step reported failure",
			logging.String(logging.FieldEventType, "step_failure"),
			logging.String("log", finalLog))
	}

	// Guarded write: a restart issued mid-execution re-queues the step, and
	// that restarted run owns the outcome, not this one.
	moved, err := store.MoveStepStatus(ctx, step.ID, records.StatusInProgress, final, finalLog)
	if err != nil {
		logger.Error("persist step outcome", logging.Error(err))
		return
	}
	if !moved {
		logger.Info("step outcome superseded",
			logging.String(logging.FieldEventType, "step_superseded"))
		return
	}

	logger.Info("step finished",
		logging.String(logging.FieldEventType, "step_finish"),
		logging.String("outcome", string(final)))

	if final == records.StatusComplete {
		if _, err := p.dispatcher.Advance(ctx, j.recordID); err != nil {
			logger.Error("resume pipeline", logging.Error(err))
		}
	}
}

// executeHandler isolates handler execution so a panicking handler never
// takes a worker down; it surfaces as an unexpected failure instead.
func executeHandler(ctx context.Context, handler Handler, record *records.Record, step *records.Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Execute(ctx, record, step)
}
