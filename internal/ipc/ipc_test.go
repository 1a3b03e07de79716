package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arkline/internal/daemon"
	"arkline/internal/ipc"
	"arkline/internal/logging"
	"arkline/internal/pipeline"
	"arkline/internal/records"
	"arkline/internal/testsupport"
)

func noopHandler() pipeline.Handler {
	return pipeline.HandlerFunc(func(context.Context, *records.Record, *records.Step) error {
		return nil
	})
}

func waitForStep(t *testing.T, client *ipc.Client, recordID int64, stepType string, status records.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Describe(recordID)
		if err != nil {
			t.Fatalf("Describe: %v", err)
		}
		for _, step := range resp.Record.Steps {
			if step.Type == stepType && step.Status == string(status) {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, err := client.Describe(recordID)
	if err == nil {
		t.Fatalf("step %s never reached %s, steps: %+v", stepType, status, resp.Record.Steps)
	}
	t.Fatalf("step %s never reached %s", stepType, status)
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	registry := pipeline.NewRegistry()
	for _, stepType := range []records.StepType{
		records.StepParseFilename,
		records.StepRegistryLookup,
		records.StepGenerateFields,
		records.StepMintHandle,
		records.StepTranslate,
	} {
		if err := registry.Register(stepType, noopHandler()); err != nil {
			t.Fatalf("Register %s: %v", stepType, err)
		}
	}

	dispatcher := pipeline.NewDispatcher(store, registry, logger)
	pool := pipeline.NewPool(dispatcher, 1, logger)
	d, err := daemon.New(cfg, store, dispatcher, pool, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := filepath.Join(cfg.Paths.DataDir, "arklined.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() { srv.Close() })

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.TotalRecords != 0 {
		t.Fatalf("expected empty store, got %d records", status.TotalRecords)
	}
	if !strings.HasSuffix(status.DBPath, "records.db") {
		t.Fatalf("unexpected db path: %s", status.DBPath)
	}

	addResp, err := client.Add([]string{"fack-01234-1952-arsberattelse.pdf"}, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(addResp.Records) != 1 || len(addResp.Records[0].Steps) != len(records.DefaultSteps()) {
		t.Fatalf("unexpected add response: %+v", addResp.Records)
	}
	recordID := addResp.Records[0].ID

	// The first three automatic steps run through the noop handlers; the
	// third carries human validation and pauses there.
	waitForStep(t, client, recordID, string(records.StepGenerateFields), records.StatusAwaitingHumanValidation)

	if _, err := client.Confirm(recordID); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	waitForStep(t, client, recordID, string(records.StepManualReview), records.StatusAwaitingHumanInput)

	if _, err := client.SubmitInput(recordID, false); err != nil {
		t.Fatalf("SubmitInput failed: %v", err)
	}
	waitForStep(t, client, recordID, string(records.StepTranslate), records.StatusComplete)

	if _, err := client.Restart(recordID, string(records.StepTranslate)); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	waitForStep(t, client, recordID, string(records.StepTranslate), records.StatusComplete)

	if _, err := client.Restart(recordID, "no_such_step"); err == nil {
		t.Fatal("expected error for unknown step type")
	}

	listResp, err := client.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listResp.Records) != 1 || listResp.Records[0].ID != recordID {
		t.Fatalf("unexpected list response: %+v", listResp.Records)
	}

	advResp, err := client.Advance(recordID)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if advResp.Dispatched {
		t.Fatal("finished record must not dispatch")
	}

	removeResp, err := client.Remove(recordID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removeResp.Removed {
		t.Fatal("expected record to be removed")
	}

	// A custom step list replaces the default pipeline for the whole batch.
	customResp, err := client.Add([]string{"custom-pipeline.pdf"}, []ipc.StepSpecView{
		{Type: string(records.StepParseFilename), Order: 1, Mode: string(records.ModeAutomatic)},
		{Type: string(records.StepTranslate), Order: 2, Mode: string(records.ModeAutomatic)},
	})
	if err != nil {
		t.Fatalf("Add with custom steps failed: %v", err)
	}
	if len(customResp.Records) != 1 || len(customResp.Records[0].Steps) != 2 {
		t.Fatalf("unexpected custom add response: %+v", customResp.Records)
	}
	customID := customResp.Records[0].ID
	waitForStep(t, client, customID, string(records.StepTranslate), records.StatusComplete)

	_, err = client.Add([]string{"bad-steps.pdf"}, []ipc.StepSpecView{
		{Type: "frobnicate", Order: 1, Mode: string(records.ModeAutomatic)},
	})
	if err == nil {
		t.Fatal("expected error for unknown step type in specs")
	}

	if _, err := client.Remove(customID); err != nil {
		t.Fatalf("Remove custom record failed: %v", err)
	}

	status2, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status2.TotalRecords != 0 {
		t.Fatalf("expected 0 records after removal, got %d", status2.TotalRecords)
	}
}
