package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewComboNotFoundError("c-1"))

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	for _, field := range []string{"code", "message", "category", "action"} {
		if s, _ := raw[field].(string); s == "" {
			t.Errorf("missing required field: %s", field)
		}
	}
	if raw["code"] != model.ErrCodeComboNotFound {
		t.Errorf("code = %v, want %s", raw["code"], model.ErrCodeComboNotFound)
	}
	if _, ok := raw["details"]; ok {
		t.Error("details should be omitted when there are no field errors")
	}
}

// TestWriteErrorResponse_IncludesFieldDetails は検証エラーの details を検証する。
func TestWriteErrorResponse_IncludesFieldDetails(t *testing.T) {
	w := httptest.NewRecorder()
	fields := []model.FieldError{
		{Field: "name", Message: "campo obrigatório"},
		{Field: "color", Message: "cor inválida (use #RRGGBB)"},
	}

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(fields...))

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeValidation || body.Category != "validation" {
		t.Errorf("code/category = %s/%s", body.Code, body.Category)
	}
	if diff := cmp.Diff(fields, body.Details); diff != "" {
		t.Errorf("details mismatch (-want +got):\n%s", diff)
	}
}

// TestInternalServerError_ReturnsSystemError は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsSystemError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" || body.Category != "system" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}
