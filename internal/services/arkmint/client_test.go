package arkmint_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"arkline/internal/config"
	"arkline/internal/logging"
	"arkline/internal/services/arkmint"
)

func newTestClient(t *testing.T, handler http.Handler) *arkmint.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.Ark{
		BaseURL:  server.URL,
		NAAN:     "12345",
		Shoulder: "/r1",
		Token:    "secret-token",
	}
	return arkmint.NewClient(cfg, server.Client(), logging.NewNop())
}

func TestMintSendsNAANShoulderAndBearerToken(t *testing.T) {
	var gotBody map[string]string
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/mint" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"ark": "ark:/12345/r1t4c8"})
	}))

	ark, err := client.Mint(context.Background(), map[string]string{"title": "Annual report 1952"})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if ark != "ark:/12345/r1t4c8" {
		t.Fatalf("ark = %q", ark)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody["naan"] != "12345" || gotBody["shoulder"] != "/r1" || gotBody["title"] != "Annual report 1952" {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestUpdateRejectionCarriesStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	err := client.Update(context.Background(), "ark:/12345/r1t4c8", map[string]string{"title": "new"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 in error, got %v", err)
	}
}

func TestDetailsDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "json" {
			t.Errorf("expected ?json query, got %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"title": "Annual report 1952"})
	}))
	t.Cleanup(server.Close)

	client := arkmint.NewClient(config.Ark{BaseURL: server.URL}, server.Client(), logging.NewNop())
	details, err := client.Details(context.Background(), server.URL+"/ark:/12345/r1t4c8")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if details["title"] != "Annual report 1952" {
		t.Fatalf("details = %+v", details)
	}
}
