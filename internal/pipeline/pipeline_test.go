package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"arkline/internal/logging"
	"arkline/internal/pipeline"
	"arkline/internal/records"
	"arkline/internal/testsupport"
)

type env struct {
	store      *records.Store
	registry   *pipeline.Registry
	dispatcher *pipeline.Dispatcher
}

func newEnv(t *testing.T) (*env, context.Context) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	registry := pipeline.NewRegistry()
	dispatcher := pipeline.NewDispatcher(store, registry, logging.NewNop())
	pool := pipeline.NewPool(dispatcher, 2, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	// Cancel before waiting: the workers only exit once the context is done.
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	return &env{store: store, registry: registry, dispatcher: dispatcher}, ctx
}

func mustRegister(t *testing.T, registry *pipeline.Registry, stepType records.StepType, handler pipeline.Handler) {
	t.Helper()
	if err := registry.Register(stepType, handler); err != nil {
		t.Fatalf("Register %s: %v", stepType, err)
	}
}

func completingHandler(counter *atomic.Int32) pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, record *records.Record, step *records.Step) error {
		if counter != nil {
			counter.Add(1)
		}
		return nil
	})
}

func waitForStepStatus(t *testing.T, store *records.Store, stepID int64, want records.Status) *records.Step {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		step, err := store.GetStep(context.Background(), stepID)
		if err != nil {
			t.Fatalf("GetStep: %v", err)
		}
		if step != nil && step.Status == want {
			return step
		}
		time.Sleep(5 * time.Millisecond)
	}
	step, _ := store.GetStep(context.Background(), stepID)
	t.Fatalf("step %d never reached %s, last seen %+v", stepID, want, step)
	return nil
}

func stepByType(t *testing.T, store *records.Store, recordID int64, stepType records.StepType) *records.Step {
	t.Helper()
	step, err := store.StepByType(context.Background(), recordID, stepType)
	if err != nil {
		t.Fatalf("StepByType: %v", err)
	}
	if step == nil {
		t.Fatalf("record %d has no step %s", recordID, stepType)
	}
	return step
}

func TestScenarioAutomaticManualValidation(t *testing.T) {
	e, ctx := newEnv(t)
	var executions atomic.Int32
	mustRegister(t, e.registry, records.StepParseFilename, completingHandler(&executions))
	mustRegister(t, e.registry, records.StepGenerateFields, completingHandler(&executions))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepParseFilename, Order: 1, Mode: records.ModeAutomatic},
		{Type: records.StepManualReview, Order: 2, Mode: records.ModeManual},
		{Type: records.StepGenerateFields, Order: 3, Mode: records.ModeAutomatic, HumanValidation: true},
	})

	dispatched, err := e.dispatcher.Advance(ctx, record.ID)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !dispatched {
		t.Fatal("expected first advance to dispatch step 1")
	}

	first := stepByType(t, e.store, record.ID, records.StepParseFilename)
	waitForStepStatus(t, e.store, first.ID, records.StatusComplete)

	// Step 1 completion auto-advances into the manual gate.
	manual := stepByType(t, e.store, record.ID, records.StepManualReview)
	waitForStepStatus(t, e.store, manual.ID, records.StatusAwaitingHumanInput)

	if err := e.dispatcher.SubmitInput(ctx, record.ID, false); err != nil {
		t.Fatalf("SubmitInput: %v", err)
	}
	waitForStepStatus(t, e.store, manual.ID, records.StatusComplete)

	validated := stepByType(t, e.store, record.ID, records.StepGenerateFields)
	waitForStepStatus(t, e.store, validated.ID, records.StatusAwaitingHumanValidation)

	if err := e.dispatcher.Confirm(ctx, record.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	waitForStepStatus(t, e.store, validated.ID, records.StatusComplete)

	if got := executions.Load(); got != 2 {
		t.Fatalf("handler executions = %d, want 2", got)
	}

	steps, err := e.store.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	if next := records.NextActionable(steps); next != nil {
		t.Fatalf("record not finished, next = %+v", next)
	}
}

func TestAdvanceIsIdempotentWhileStepInFlight(t *testing.T) {
	e, ctx := newEnv(t)
	release := make(chan struct{})
	started := make(chan struct{})
	mustRegister(t, e.registry, records.StepParseFilename, pipeline.HandlerFunc(func(ctx context.Context, record *records.Record, step *records.Step) error {
		close(started)
		<-release
		return nil
	}))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepParseFilename, Order: 1, Mode: records.ModeAutomatic},
	})

	dispatched, err := e.dispatcher.Advance(ctx, record.ID)
	if err != nil || !dispatched {
		t.Fatalf("Advance = %v, %v", dispatched, err)
	}
	<-started

	for i := 0; i < 3; i++ {
		dispatched, err := e.dispatcher.Advance(ctx, record.ID)
		if err != nil {
			t.Fatalf("redundant Advance: %v", err)
		}
		if dispatched {
			t.Fatal("redundant Advance dispatched a second execution")
		}
	}

	close(release)
	step := stepByType(t, e.store, record.ID, records.StepParseFilename)
	waitForStepStatus(t, e.store, step.ID, records.StatusComplete)
}

func TestManualStepNeverAutoDispatches(t *testing.T) {
	e, ctx := newEnv(t)
	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepManualReview, Order: 1, Mode: records.ModeManual},
	})

	dispatched, err := e.dispatcher.Advance(ctx, record.ID)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if dispatched {
		t.Fatal("manual step must not dispatch")
	}
	step := stepByType(t, e.store, record.ID, records.StepManualReview)
	if step.Status != records.StatusAwaitingHumanInput {
		t.Fatalf("status = %s, want awaiting_human_input", step.Status)
	}
}

func TestReportedFailureHaltsUntilRestart(t *testing.T) {
	e, ctx := newEnv(t)
	var attempts atomic.Int32
	mustRegister(t, e.registry, records.StepRegistryLookup, pipeline.HandlerFunc(func(ctx context.Context, record *records.Record, step *records.Step) error {
		if attempts.Add(1) == 1 {
			step.Status = records.StatusError
			step.Log = "No registry entry found for union 12345."
			return nil
		}
		return nil
	}))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepRegistryLookup, Order: 1, Mode: records.ModeAutomatic},
	})

	if _, err := e.dispatcher.Advance(ctx, record.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	step := stepByType(t, e.store, record.ID, records.StepRegistryLookup)
	got := waitForStepStatus(t, e.store, step.ID, records.StatusError)
	if got.Log != "No registry entry found for union 12345." {
		t.Fatalf("log = %q", got.Log)
	}

	// The halted record ignores further advances.
	dispatched, err := e.dispatcher.Advance(ctx, record.ID)
	if err != nil || dispatched {
		t.Fatalf("Advance on halted record = %v, %v", dispatched, err)
	}

	if err := e.dispatcher.Restart(ctx, record.ID, records.StepRegistryLookup); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	final := waitForStepStatus(t, e.store, step.ID, records.StatusComplete)
	if final.Log != "" {
		t.Fatalf("restart did not clear log: %q", final.Log)
	}
	if attempts.Load() != 2 {
		t.Fatalf("attempts = %d, want 2", attempts.Load())
	}
}

func TestRestartReexecutesCompletedStep(t *testing.T) {
	e, ctx := newEnv(t)
	var executions atomic.Int32
	mustRegister(t, e.registry, records.StepParseFilename, completingHandler(&executions))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepParseFilename, Order: 1, Mode: records.ModeAutomatic},
	})

	if _, err := e.dispatcher.Advance(ctx, record.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	step := stepByType(t, e.store, record.ID, records.StepParseFilename)
	waitForStepStatus(t, e.store, step.ID, records.StatusComplete)

	if err := e.dispatcher.Restart(ctx, record.ID, records.StepParseFilename); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	waitForStepStatus(t, e.store, step.ID, records.StatusComplete)
	if executions.Load() != 2 {
		t.Fatalf("executions = %d, want 2", executions.Load())
	}
}

func TestRestartDuringExecutionReexecutesHandler(t *testing.T) {
	e, ctx := newEnv(t)
	release := make(chan struct{})
	started := make(chan struct{})
	var executions atomic.Int32
	mustRegister(t, e.registry, records.StepParseFilename, pipeline.HandlerFunc(func(ctx context.Context, record *records.Record, step *records.Step) error {
		if executions.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	}))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepParseFilename, Order: 1, Mode: records.ModeAutomatic},
	})

	if _, err := e.dispatcher.Advance(ctx, record.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	<-started

	// Restart while the first execution is still inside the handler. The
	// re-queued run owns the step from here on.
	if err := e.dispatcher.Restart(ctx, record.ID, records.StepParseFilename); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	close(release)

	step := stepByType(t, e.store, record.ID, records.StepParseFilename)
	waitForStepStatus(t, e.store, step.ID, records.StatusComplete)
	if executions.Load() != 2 {
		t.Fatalf("executions = %d, want 2 (restart must re-execute)", executions.Load())
	}
}

func TestUnexpectedErrorGetsGenericLog(t *testing.T) {
	e, ctx := newEnv(t)
	mustRegister(t, e.registry, records.StepMintHandle, pipeline.HandlerFunc(func(ctx context.Context, record *records.Record, step *records.Step) error {
		return errors.New("tls: handshake failure against 10.0.0.7")
	}))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepMintHandle, Order: 1, Mode: records.ModeAutomatic},
	})
	if _, err := e.dispatcher.Advance(ctx, record.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	step := stepByType(t, e.store, record.ID, records.StepMintHandle)
	got := waitForStepStatus(t, e.store, step.ID, records.StatusError)
	if strings.Contains(got.Log, "handshake") {
		t.Fatalf("step log leaks internals: %q", got.Log)
	}
	if !strings.Contains(got.Log, "unexpected issue") {
		t.Fatalf("step log = %q, want generic message", got.Log)
	}
}

func TestPanickingHandlerIsContained(t *testing.T) {
	e, ctx := newEnv(t)
	mustRegister(t, e.registry, records.StepTranslate, pipeline.HandlerFunc(func(ctx context.Context, record *records.Record, step *records.Step) error {
		panic("nil map write")
	}))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepTranslate, Order: 1, Mode: records.ModeAutomatic},
	})
	if _, err := e.dispatcher.Advance(ctx, record.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	step := stepByType(t, e.store, record.ID, records.StepTranslate)
	got := waitForStepStatus(t, e.store, step.ID, records.StatusError)
	if strings.Contains(got.Log, "nil map") {
		t.Fatalf("step log leaks panic detail: %q", got.Log)
	}
}

func TestMissingHandlerHaltsStep(t *testing.T) {
	e, ctx := newEnv(t)
	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepExtractText, Order: 1, Mode: records.ModeAutomatic},
	})

	dispatched, err := e.dispatcher.Advance(ctx, record.ID)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if dispatched {
		t.Fatal("step without handler must not dispatch")
	}
	step := stepByType(t, e.store, record.ID, records.StepExtractText)
	if step.Status != records.StatusError {
		t.Fatalf("status = %s, want error", step.Status)
	}
	if !strings.Contains(step.Log, string(records.StepExtractText)) {
		t.Fatalf("log = %q, want step name", step.Log)
	}
}

func TestSubmitInputCanRerunHandler(t *testing.T) {
	e, ctx := newEnv(t)
	var executions atomic.Int32
	mustRegister(t, e.registry, records.StepGenerateFields, completingHandler(&executions))

	record := testsupport.NewRecordWithSteps(t, e.store, "fack-12345-1952", []records.StepSpec{
		{Type: records.StepGenerateFields, Order: 1, Mode: records.ModeManual},
	})

	if _, err := e.dispatcher.Advance(ctx, record.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	step := stepByType(t, e.store, record.ID, records.StepGenerateFields)
	waitForStepStatus(t, e.store, step.ID, records.StatusAwaitingHumanInput)

	if err := e.dispatcher.SubmitInput(ctx, record.ID, true); err != nil {
		t.Fatalf("SubmitInput rerun: %v", err)
	}
	waitForStepStatus(t, e.store, step.ID, records.StatusComplete)
	if executions.Load() != 1 {
		t.Fatalf("executions = %d, want 1", executions.Load())
	}
}

func TestRegistryRejectsDuplicatesAndUnknownTypes(t *testing.T) {
	registry := pipeline.NewRegistry()
	handler := completingHandler(nil)

	if err := registry.Register(records.StepTranslate, handler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(records.StepTranslate, handler); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := registry.Register(records.StepType("bogus"), handler); err == nil {
		t.Fatal("expected unknown type error")
	}
	if _, ok := registry.Resolve(records.StepTranslate); !ok {
		t.Fatal("expected translate handler")
	}
	if _, ok := registry.Resolve(records.StepMintARK); ok {
		t.Fatal("unexpected mint_ark handler")
	}
}
