package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRecorder struct {
	calls []recordedRequest
}

func (f *fakeRecorder) Record(method, route string, status int, _ time.Duration) {
	f.calls = append(f.calls, recordedRequest{method: method, route: route, status: status})
}

func TestLoggerRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	recorder := &fakeRecorder{}

	router := chi.NewRouter()
	router.Use(RequestID)
	router.Use(Logger(zerolog.New(&buf), recorder))
	router.Get("/periods/{periodID}/summary", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/periods/abc/summary", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(recorder.calls) != 1 {
		t.Fatalf("expected one record, got %d", len(recorder.calls))
	}
	call := recorder.calls[0]
	if call.route != "/periods/{periodID}/summary" || call.status != http.StatusTeapot {
		t.Fatalf("unexpected record: %+v", call)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if entry["level"] != "warn" || entry["path"] != "/periods/abc/summary" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Fatalf("expected request id in log entry: %v", entry)
	}
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	var buf bytes.Buffer
	handler := Recoverer(zerolog.New(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"internal_error"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "handler panic") {
		t.Fatalf("expected panic to be logged: %s", buf.String())
	}
}

func TestBodyLimitRejectsDeclaredOversize(t *testing.T) {
	handler := BodyLimit(16)(noContent())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, get)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected GET to pass, got %d", rec.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureHeaders(true)(noContent()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS in production")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected nosniff")
	}
}
