package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"arkline/internal/config"
	"arkline/internal/logging"
	"arkline/internal/pipeline"
	"arkline/internal/records"
)

// Daemon coordinates the record store, the dispatcher, and the worker pool,
// and enforces single-instance execution through a lock file.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *records.Store
	dispatcher *pipeline.Dispatcher
	pool       *pipeline.Pool

	logPath  string
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DBPath       string
	LockFilePath string
	TotalRecords int
	StepStats    map[records.Status]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *records.Store, dispatcher *pipeline.Dispatcher, pool *pipeline.Pool, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || dispatcher == nil || pool == nil {
		return nil, errors.New("daemon requires config, store, dispatcher, and worker pool")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "arklined.lock")
	var logPath string
	if cfg.Paths.LogDir != "" {
		logPath = filepath.Join(cfg.Paths.LogDir, "arkline.log")
	}
	return &Daemon{
		cfg:        cfg,
		logger:     logging.WithComponent(logger, "daemon"),
		store:      store,
		dispatcher: dispatcher,
		pool:       pool,
		logPath:    logPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, launches the worker pool, and resumes
// records that were mid-flight when the previous process exited.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another arklined instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.pool.Start(d.ctx)
	d.running.Store(true)

	if err := d.resume(d.ctx); err != nil {
		d.logger.Warn("resume after restart failed", logging.Error(err))
	}

	d.logger.Info("arklined started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()))
	return nil
}

// Stop stops background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("arklined stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// resume walks every record, turns steps that were queued or executing when
// the process died back into pending, and re-advances. Dispatch state lives
// only in memory, so anything short of a terminal status must be rebuilt.
func (d *Daemon) resume(ctx context.Context) error {
	recs, err := d.store.ListRecords(ctx)
	if err != nil {
		return err
	}
	for _, record := range recs {
		steps, err := d.store.StepsForRecord(ctx, record.ID)
		if err != nil {
			return err
		}
		interrupted := false
		for _, step := range steps {
			if step.Status != records.StatusQueued && step.Status != records.StatusInProgress {
				continue
			}
			if err := d.store.SetStepStatus(ctx, step.ID, records.StatusPending, ""); err != nil {
				return err
			}
			interrupted = true
		}
		if !interrupted {
			continue
		}
		d.logger.Info("resuming interrupted record", logging.Int64(logging.FieldRecordID, record.ID))
		if _, err := d.dispatcher.Advance(ctx, record.ID); err != nil {
			d.logger.Warn("resume dispatch failed",
				logging.Int64(logging.FieldRecordID, record.ID),
				logging.Error(err))
		}
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	total, err := d.store.CountRecords(ctx)
	if err != nil {
		return Status{}, err
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		TotalRecords: total,
		StepStats:    stats,
	}, nil
}

// AddRecord creates a record and kicks off processing. The title is
// typically the uploaded file's name. Nil specs seed the default pipeline.
func (d *Daemon) AddRecord(ctx context.Context, title string, specs []records.StepSpec) (*records.Record, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return nil, errors.New("record title is required")
	}
	if len(specs) == 0 {
		specs = records.DefaultSteps()
	}
	record, err := d.store.CreateRecord(ctx, trimmed, "", specs)
	if err != nil {
		return nil, err
	}
	d.logger.Info("record added",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("title", record.Title))
	if _, err := d.dispatcher.Advance(ctx, record.ID); err != nil {
		return record, err
	}
	return record, nil
}

// ListRecords returns all records ordered by creation.
func (d *Daemon) ListRecords(ctx context.Context) ([]*records.Record, error) {
	return d.store.ListRecords(ctx)
}

// DescribeRecord returns one record with its steps and pages.
func (d *Daemon) DescribeRecord(ctx context.Context, id int64) (*records.Record, []*records.Step, []*records.Page, error) {
	record, err := d.store.GetRecord(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if record == nil {
		return nil, nil, nil, fmt.Errorf("record %d not found", id)
	}
	steps, err := d.store.StepsForRecord(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	pages, err := d.store.PagesForRecord(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return record, steps, pages, nil
}

// StepsForRecord returns the record's steps in execution order.
func (d *Daemon) StepsForRecord(ctx context.Context, id int64) ([]*records.Step, error) {
	return d.store.StepsForRecord(ctx, id)
}

// Advance re-evaluates a record's pipeline and dispatches the next step when
// the scheduling rules allow it.
func (d *Daemon) Advance(ctx context.Context, id int64) (bool, error) {
	return d.dispatcher.Advance(ctx, id)
}

// RestartStep forces one step back through execution regardless of its
// current status.
func (d *Daemon) RestartStep(ctx context.Context, id int64, stepType records.StepType) error {
	return d.dispatcher.Restart(ctx, id, stepType)
}

// SubmitInput resolves a step waiting on human input.
func (d *Daemon) SubmitInput(ctx context.Context, id int64, rerun bool) error {
	return d.dispatcher.SubmitInput(ctx, id, rerun)
}

// Confirm resolves a step waiting on human validation.
func (d *Daemon) Confirm(ctx context.Context, id int64) error {
	return d.dispatcher.Confirm(ctx, id)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// RemoveRecord deletes a record along with its steps and pages.
func (d *Daemon) RemoveRecord(ctx context.Context, id int64) (bool, error) {
	removed, err := d.store.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		d.logger.Info("record removed", logging.Int64(logging.FieldRecordID, id))
	}
	return removed, nil
}
