package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"familytree/internal/apperr"
	"familytree/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New("test")
}

func TestRespondJSONWrapsData(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusCreated, map[string]string{"key": "value"})

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", recorder.Code)
	}
	var body envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !body.Success {
		t.Error("expected success=true")
	}
	if body.Code != "" || body.Message != "" {
		t.Errorf("unexpected error fields: %q %q", body.Code, body.Message)
	}
}

func TestRespondErrorUsesAppErrorStatus(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, testLogger(), apperr.NotFound("Member not found", "العضو غير موجود"))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	var body envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Success {
		t.Error("expected success=false")
	}
	if body.Code != "NOT_FOUND_ERROR" {
		t.Errorf("code = %q, want NOT_FOUND_ERROR", body.Code)
	}
	if body.MessageAr == "" {
		t.Error("expected Arabic message")
	}
}

func TestRespondErrorMasksUnknownErrors(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, testLogger(), errors.New("sql: connection refused"))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", recorder.Code)
	}
	if strings.Contains(recorder.Body.String(), "connection refused") {
		t.Error("internal error details leaked to the client")
	}
	var body envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

func TestDecodeBody(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Salem"}`))
	if err := decodeBody(r, &dst); err != nil {
		t.Fatalf("decodeBody() error = %v", err)
	}
	if dst.Name != "Salem" {
		t.Errorf("name = %q", dst.Name)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := decodeBody(r, &dst); err == nil {
		t.Error("expected error for empty body")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	err := decodeBody(r, &dst)
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	if appErr := apperr.As(err); appErr == nil || appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestPathID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/snapshots/42", nil)
	r.SetPathValue("id", "42")
	id, err := pathID(r)
	if err != nil {
		t.Fatalf("pathID() error = %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/snapshots/abc", nil)
	r.SetPathValue("id", "abc")
	if _, err := pathID(r); err == nil {
		t.Error("expected error for non-numeric id")
	}

	r = httptest.NewRequest(http.MethodGet, "/api/snapshots/-1", nil)
	r.SetPathValue("id", "-1")
	if _, err := pathID(r); err == nil {
		t.Error("expected error for negative id")
	}
}
