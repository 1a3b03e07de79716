package daemon_test

import (
	"context"
	"testing"
	"time"

	"arkline/internal/config"
	"arkline/internal/daemon"
	"arkline/internal/logging"
	"arkline/internal/pipeline"
	"arkline/internal/records"
	"arkline/internal/testsupport"
)

func newDaemon(t *testing.T, store *records.Store, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	registry := pipeline.NewRegistry()
	for _, stepType := range records.AllStepTypes() {
		if stepType == records.StepManualReview {
			continue
		}
		err := registry.Register(stepType, pipeline.HandlerFunc(func(context.Context, *records.Record, *records.Step) error {
			return nil
		}))
		if err != nil {
			t.Fatalf("Register %s: %v", stepType, err)
		}
	}
	dispatcher := pipeline.NewDispatcher(store, registry, logger)
	pool := pipeline.NewPool(dispatcher, 1, logger)
	d, err := daemon.New(cfg, store, dispatcher, pool, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, store, cfg)
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start on the same daemon must fail")
	}

	d.Stop()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
}

func TestDaemonResumesInterruptedSteps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Simulate a record whose first step was executing when the previous
	// process died.
	record := testsupport.NewRecord(t, store, "fack-01234-1952")
	steps, err := store.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	if err := store.SetStepStatus(ctx, steps[0].ID, records.StatusInProgress, ""); err != nil {
		t.Fatalf("SetStepStatus: %v", err)
	}

	d := newDaemon(t, store, cfg)
	t.Cleanup(func() { d.Close() })
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitForStepStatus(t, store, steps[0].ID, records.StatusComplete)
}

func TestDaemonAddRecordSeedsAndDispatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, store, cfg)
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := d.AddRecord(ctx, "   ", nil); err == nil {
		t.Fatal("blank title must be rejected")
	}

	record, err := d.AddRecord(ctx, "fack-01234-1952-arsberattelse.pdf", nil)
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	steps, err := d.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	if len(steps) != len(records.DefaultSteps()) {
		t.Fatalf("expected default step sequence, got %d steps", len(steps))
	}

	// The noop handlers complete everything up to the validation gate.
	waitForStepStatus(t, store, steps[2].ID, records.StatusAwaitingHumanValidation)

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.TotalRecords != 1 {
		t.Fatalf("total records = %d", status.TotalRecords)
	}
	if status.StepStats[records.StatusAwaitingHumanValidation] != 1 {
		t.Fatalf("step stats = %v", status.StepStats)
	}
}

func waitForStepStatus(t *testing.T, store *records.Store, stepID int64, want records.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		step, err := store.GetStep(context.Background(), stepID)
		if err != nil {
			t.Fatalf("GetStep: %v", err)
		}
		if step != nil && step.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	step, _ := store.GetStep(context.Background(), stepID)
	t.Fatalf("step %d never reached %s, now %+v", stepID, want, step)
}
