package records_test

import (
	"context"
	"testing"

	"arkline/internal/records"
	"arkline/internal/testsupport"
)

func TestCreateRecordSeedsPendingSteps(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record, err := store.CreateRecord(ctx, "fack-12345-1952", "", records.DefaultSteps())
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("expected record id")
	}

	steps, err := store.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	if len(steps) != len(records.DefaultSteps()) {
		t.Fatalf("expected %d steps, got %d", len(records.DefaultSteps()), len(steps))
	}
	lastOrder := 0
	for _, step := range steps {
		if step.Status != records.StatusPending {
			t.Errorf("step %s: status %s, want pending", step.Type, step.Status)
		}
		if step.Order <= lastOrder {
			t.Errorf("step %s: order %d not ascending after %d", step.Type, step.Order, lastOrder)
		}
		lastOrder = step.Order
	}
}

func TestCreateRecordRejectsDuplicateOrder(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := store.CreateRecord(context.Background(), "dup", "", []records.StepSpec{
		{Type: records.StepParseFilename, Order: 1, Mode: records.ModeAutomatic},
		{Type: records.StepTranslate, Order: 1, Mode: records.ModeAutomatic},
	})
	if err == nil {
		t.Fatal("expected duplicate order error")
	}
}

func TestCreateRecordRejectsUnknownStepType(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	_, err := store.CreateRecord(context.Background(), "bad", "", []records.StepSpec{
		{Type: records.StepType("frobnicate"), Order: 1, Mode: records.ModeAutomatic},
	})
	if err == nil {
		t.Fatal("expected unknown step type error")
	}
}

func TestSetStepStatusPersistsAndClearsLog(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	record := testsupport.NewRecord(t, store, "fack-12345-1952")

	steps, err := store.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	first := steps[0]

	if err := store.SetStepStatus(ctx, first.ID, records.StatusError, "could not parse filename"); err != nil {
		t.Fatalf("SetStepStatus: %v", err)
	}
	got, err := store.GetStep(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if got.Status != records.StatusError || got.Log != "could not parse filename" {
		t.Fatalf("got status=%s log=%q", got.Status, got.Log)
	}

	if err := store.SetStepStatus(ctx, first.ID, records.StatusQueued, ""); err != nil {
		t.Fatalf("SetStepStatus retry: %v", err)
	}
	got, err = store.GetStep(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if got.Status != records.StatusQueued {
		t.Fatalf("status = %s, want queued", got.Status)
	}
	if got.Log != "" {
		t.Fatalf("log = %q, want cleared", got.Log)
	}
}

func TestMoveStepStatusGuardsOnCurrentStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	record := testsupport.NewRecord(t, store, "fack-12345-1952")

	steps, err := store.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	first := steps[0]

	moved, err := store.MoveStepStatus(ctx, first.ID, records.StatusPending, records.StatusQueued, "")
	if err != nil {
		t.Fatalf("MoveStepStatus: %v", err)
	}
	if !moved {
		t.Fatal("expected pending step to move to queued")
	}

	// Guard miss: the step is no longer pending, so the write must not land.
	moved, err = store.MoveStepStatus(ctx, first.ID, records.StatusPending, records.StatusComplete, "")
	if err != nil {
		t.Fatalf("MoveStepStatus miss: %v", err)
	}
	if moved {
		t.Fatal("stale transition must not overwrite the step")
	}
	got, err := store.GetStep(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if got.Status != records.StatusQueued {
		t.Fatalf("status = %s, want queued", got.Status)
	}

	if _, err := store.MoveStepStatus(ctx, first.ID, records.StatusQueued, records.Status("bogus"), ""); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestSetStepStatusRejectsUnknownStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	record := testsupport.NewRecord(t, store, "fack-12345-1952")

	steps, err := store.StepsForRecord(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	if err := store.SetStepStatus(context.Background(), steps[0].ID, records.Status("bogus"), ""); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestUpdateRecordStampsIdentifier(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	record := testsupport.NewRecord(t, store, "fack-12345-1952")

	record.NOID = "b4kw2mfs8zvqd3h"
	record.Identifier = "https://hdl.handle.net/20.500.12345/b4kw2mfs8zvqd3h"
	if err := store.UpdateRecord(ctx, record); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	got, err := store.GetRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.NOID != record.NOID || got.Identifier != record.Identifier {
		t.Fatalf("got noid=%q identifier=%q", got.NOID, got.Identifier)
	}
}

func TestRemoveCascadesStepsAndPages(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	record := testsupport.NewRecord(t, store, "fack-12345-1952")

	if _, err := store.AddPage(ctx, &records.Page{RecordID: record.ID, Order: 1, Source: "page-0001.jpg"}); err != nil {
		t.Fatalf("AddPage: %v", err)
	}

	removed, err := store.Remove(ctx, record.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}

	steps, err := store.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("expected cascade delete of steps, got %d", len(steps))
	}
	pages, err := store.PagesForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("PagesForRecord: %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected cascade delete of pages, got %d", len(pages))
	}
}

func TestPagesRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	record := testsupport.NewRecord(t, store, "fack-12345-1952")

	page, err := store.AddPage(ctx, &records.Page{RecordID: record.ID, Order: 1, Source: "page-0001.jpg"})
	if err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	page.NOID = "c7h2j9kmnp4qrst"
	page.Identifier = "https://hdl.handle.net/20.500.12345/c7h2j9kmnp4qrst"
	if err := store.UpdatePage(ctx, page); err != nil {
		t.Fatalf("UpdatePage: %v", err)
	}

	pages, err := store.PagesForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("PagesForRecord: %v", err)
	}
	if len(pages) != 1 || pages[0].NOID != page.NOID {
		t.Fatalf("unexpected pages %+v", pages)
	}
}

func TestNextActionable(t *testing.T) {
	steps := []*records.Step{
		{Order: 2, Type: records.StepRegistryLookup, Status: records.StatusPending},
		{Order: 1, Type: records.StepParseFilename, Status: records.StatusComplete},
		{Order: 3, Type: records.StepTranslate, Status: records.StatusPending},
	}
	next := records.NextActionable(steps)
	if next == nil || next.Type != records.StepRegistryLookup {
		t.Fatalf("NextActionable = %+v, want registry_lookup", next)
	}

	for _, step := range steps {
		step.Status = records.StatusComplete
	}
	if next := records.NextActionable(steps); next != nil {
		t.Fatalf("expected nil for finished record, got %+v", next)
	}
}

func TestParseHelpers(t *testing.T) {
	if status, ok := records.ParseStatus(" In_Progress "); !ok || status != records.StatusInProgress {
		t.Fatalf("ParseStatus = %q %v", status, ok)
	}
	if _, ok := records.ParseStatus("unknown"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if stepType, ok := records.ParseStepType("MINT_HANDLE"); !ok || stepType != records.StepMintHandle {
		t.Fatalf("ParseStepType = %q %v", stepType, ok)
	}
	if mode, ok := records.ParseMode("manual"); !ok || mode != records.ModeManual {
		t.Fatalf("ParseMode = %q %v", mode, ok)
	}
	if !records.StatusQueued.InFlight() || records.StatusError.InFlight() {
		t.Fatal("InFlight classification wrong")
	}
	if !records.StatusComplete.Terminal() || !records.StatusError.Terminal() || records.StatusQueued.Terminal() {
		t.Fatal("Terminal classification wrong")
	}
}

func TestStatsCountsSteps(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	record := testsupport.NewRecord(t, store, "fack-12345-1952")

	steps, err := store.StepsForRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("StepsForRecord: %v", err)
	}
	if err := store.SetStepStatus(ctx, steps[0].ID, records.StatusComplete, ""); err != nil {
		t.Fatalf("SetStepStatus: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[records.StatusComplete] != 1 {
		t.Fatalf("complete count = %d, want 1", stats[records.StatusComplete])
	}
	if stats[records.StatusPending] != len(steps)-1 {
		t.Fatalf("pending count = %d, want %d", stats[records.StatusPending], len(steps)-1)
	}
}
