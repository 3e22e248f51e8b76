package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFailWithDetailsCarriesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FailWithDetails(rec, http.StatusBadRequest, "validation_error", "payload validation failed", map[string]any{"fields": []string{"gross"}}, "req-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var env struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error.Code != "validation_error" || env.RequestID != "req-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if _, ok := env.Error.Details["fields"]; !ok {
		t.Fatalf("expected fields in details: %+v", env.Error.Details)
	}
}

func TestPagedIncludesMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	Paged(rec, []int{1, 2}, Meta{Total: 7, Limit: 2, Offset: 4}, "")

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Meta == nil || env.Meta.Total != 7 || env.Meta.Offset != 4 {
		t.Fatalf("unexpected meta: %+v", env.Meta)
	}
}
