package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/sealdrop/internal/session"
	"github.com/danmuck/sealdrop/internal/storage"
	"github.com/danmuck/sealdrop/internal/testutil/testlog"
)

func newAdminService(t *testing.T) *Service {
	t.Helper()
	testlog.Start(t)
	return NewServiceWith(DefaultConfig(), session.NewMemoryStore(), storage.NewMemory())
}

func get(t *testing.T, svc *Service, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	svc.AdminRouter().ServeHTTP(rr, req)
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: decode body: %v body=%s", path, err, rr.Body.String())
	}
	return rr.Code, body
}

func TestAdminHealth(t *testing.T) {
	svc := newAdminService(t)
	code, body := get(t, svc, "/health")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: code=%d body=%#v", code, body)
	}
}

func TestAdminReadyReflectsListener(t *testing.T) {
	svc := newAdminService(t)
	code, body := get(t, svc, "/ready")
	if code != http.StatusServiceUnavailable || body["ready"] != false {
		t.Fatalf("expected not ready before serve: code=%d body=%#v", code, body)
	}
	svc.listening.Store(true)
	code, body = get(t, svc, "/ready")
	if code != http.StatusOK || body["ready"] != true {
		t.Fatalf("expected ready: code=%d body=%#v", code, body)
	}
}

func TestAdminClientsListsRecordsAndFiles(t *testing.T) {
	svc := newAdminService(t)
	if _, err := svc.Store().Register("Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Files().Persist("report.txt", []byte("x")); err != nil {
		t.Fatalf("persist: %v", err)
	}

	code, body := get(t, svc, "/clients")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	clients, ok := body["clients"].([]any)
	if !ok || len(clients) != 1 {
		t.Fatalf("unexpected clients: %#v", body["clients"])
	}
	first := clients[0].(map[string]any)
	if first["name"] != "Alice" || first["has_public_key"] != false {
		t.Fatalf("unexpected client summary: %#v", first)
	}
	files, ok := body["files"].([]any)
	if !ok || len(files) != 1 || files[0] != "report.txt" {
		t.Fatalf("unexpected files: %#v", body["files"])
	}
}

func TestAdminMetricsExposed(t *testing.T) {
	svc := newAdminService(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	svc.AdminRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}
