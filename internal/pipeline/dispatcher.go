package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"arkline/internal/logging"
	"arkline/internal/records"
)

const defaultQueueDepth = 256

// job is one dispatched step execution handed to the worker pool.
type job struct {
	recordID int64
	stepID   int64
}

// Dispatcher walks a record's steps in ascending order and decides which
// one, if any, may run next. It is stateless between calls; all pipeline
// state lives in the step rows. Advance is idempotent and safe to call
// redundantly; handler completion calls it again to resume the pipeline.
type Dispatcher struct {
	store    *records.Store
	registry *Registry
	logger   *slog.Logger
	queue    chan job
	locks    recordLocks
}

// NewDispatcher builds a dispatcher around the store and handler registry.
func NewDispatcher(store *records.Store, registry *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		logger:   logging.WithComponent(logger, "dispatcher"),
		queue:    make(chan job, defaultQueueDepth),
	}
}

// Advance inspects the record's steps and progresses the first one that is
// not complete: in-flight and error steps block the record, pending manual
// steps pause for human input, and pending automatic steps are queued and
// handed to the worker pool. The enqueue happens strictly after the queued
// transition is durable, so a worker can never observe stale state.
func (d *Dispatcher) Advance(ctx context.Context, recordID int64) (bool, error) {
	unlock := d.locks.lock(recordID)
	defer unlock()

	steps, err := d.store.StepsForRecord(ctx, recordID)
	if err != nil {
		return false, fmt.Errorf("load steps: %w", err)
	}
	if len(steps) == 0 {
		return false, fmt.Errorf("record %d has no steps", recordID)
	}

	next := records.NextActionable(steps)
	if next == nil {
		d.logger.Debug("record finished", logging.Int64(logging.FieldRecordID, recordID))
		return false, nil
	}

	switch {
	case next.Status.InFlight():
		return false, nil
	case next.Status == records.StatusError:
		return false, nil
	case next.Status == records.StatusPending && next.Mode == records.ModeManual:
		if err := d.store.SetStepStatus(ctx, next.ID, records.StatusAwaitingHumanInput, ""); err != nil {
			return false, err
		}
		d.logger.Info("step awaiting human input",
			logging.Int64(logging.FieldRecordID, recordID),
			logging.String(logging.FieldStep, string(next.Type)))
		return false, nil
	case next.Status == records.StatusPending:
		if _, ok := d.registry.Resolve(next.Type); !ok {
			msg := fmt.Sprintf("No handler is configured for step %s.", next.Type)
			if err := d.store.SetStepStatus(ctx, next.ID, records.StatusError, msg); err != nil {
				return false, err
			}
			d.logger.Error("no handler for step",
				logging.Int64(logging.FieldRecordID, recordID),
				logging.String(logging.FieldStep, string(next.Type)))
			return false, nil
		}
		if err := d.store.SetStepStatus(ctx, next.ID, records.StatusQueued, ""); err != nil {
			return false, err
		}
		d.enqueue(job{recordID: recordID, stepID: next.ID})
		d.logger.Info("step dispatched",
			logging.Int64(logging.FieldRecordID, recordID),
			logging.String(logging.FieldStep, string(next.Type)))
		return true, nil
	}
	return false, nil
}

// Restart forces the named step back into the pipeline regardless of its
// current status, clearing its log. It bypasses the advance rules for that
// step only; other steps are untouched. Manual steps return to awaiting
// human input since they have no handler to run.
func (d *Dispatcher) Restart(ctx context.Context, recordID int64, stepType records.StepType) error {
	unlock := d.locks.lock(recordID)
	defer unlock()

	step, err := d.store.StepByType(ctx, recordID, stepType)
	if err != nil {
		return err
	}
	if step == nil {
		return fmt.Errorf("record %d has no step %s", recordID, stepType)
	}

	if step.Mode == records.ModeManual {
		if err := d.store.SetStepStatus(ctx, step.ID, records.StatusAwaitingHumanInput, ""); err != nil {
			return err
		}
		d.logger.Info("manual step reopened",
			logging.Int64(logging.FieldRecordID, recordID),
			logging.String(logging.FieldStep, string(stepType)))
		return nil
	}

	if _, ok := d.registry.Resolve(step.Type); !ok {
		return fmt.Errorf("no handler registered for step %s", step.Type)
	}
	if err := d.store.SetStepStatus(ctx, step.ID, records.StatusQueued, ""); err != nil {
		return err
	}
	d.enqueue(job{recordID: recordID, stepID: step.ID})
	d.logger.Info("step restarted",
		logging.Int64(logging.FieldRecordID, recordID),
		logging.String(logging.FieldStep, string(stepType)))
	return nil
}

// SubmitInput resolves a step waiting on human input. When rerun is true the
// step's handler is executed with the submitted data in place; otherwise the
// step completes directly. Either way the pipeline advances afterwards.
func (d *Dispatcher) SubmitInput(ctx context.Context, recordID int64, rerun bool) error {
	unlock := d.locks.lock(recordID)

	steps, err := d.store.StepsForRecord(ctx, recordID)
	if err != nil {
		unlock()
		return fmt.Errorf("load steps: %w", err)
	}
	next := records.NextActionable(steps)
	if next == nil || next.Status != records.StatusAwaitingHumanInput {
		unlock()
		return fmt.Errorf("record %d has no step awaiting human input", recordID)
	}

	if rerun {
		if _, ok := d.registry.Resolve(next.Type); !ok {
			unlock()
			return fmt.Errorf("no handler registered for step %s", next.Type)
		}
		if err := d.store.SetStepStatus(ctx, next.ID, records.StatusQueued, ""); err != nil {
			unlock()
			return err
		}
		d.enqueue(job{recordID: recordID, stepID: next.ID})
		unlock()
		return nil
	}

	if err := d.store.SetStepStatus(ctx, next.ID, records.StatusComplete, ""); err != nil {
		unlock()
		return err
	}
	unlock()

	_, err = d.Advance(ctx, recordID)
	return err
}

// Confirm resolves a step waiting on human validation and advances the
// pipeline.
func (d *Dispatcher) Confirm(ctx context.Context, recordID int64) error {
	unlock := d.locks.lock(recordID)

	steps, err := d.store.StepsForRecord(ctx, recordID)
	if err != nil {
		unlock()
		return fmt.Errorf("load steps: %w", err)
	}
	next := records.NextActionable(steps)
	if next == nil || next.Status != records.StatusAwaitingHumanValidation {
		unlock()
		return fmt.Errorf("record %d has no step awaiting validation", recordID)
	}
	if err := d.store.SetStepStatus(ctx, next.ID, records.StatusComplete, ""); err != nil {
		unlock()
		return err
	}
	unlock()

	_, err = d.Advance(ctx, recordID)
	return err
}

// enqueue hands a job to the worker pool without ever blocking the caller;
// workers themselves enqueue follow-up jobs, so a blocking send could
// deadlock a full pool.
func (d *Dispatcher) enqueue(j job) {
	select {
	case d.queue <- j:
	default:
		go func() { d.queue <- j }()
	}
}

// recordLocks serializes dispatcher decisions per record. Cross-record
// invariants do not exist, so records never contend with each other.
type recordLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *recordLocks) lock(recordID int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	lock, ok := l.locks[recordID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[recordID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
