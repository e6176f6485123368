package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/launchboard/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidSignatureError(errors.New("address mismatch")))

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Error != model.MsgInvalidSignature {
		t.Errorf("error = %q, want %q", body.Error, model.MsgInvalidSignature)
	}
	if body.Code != string(model.KindInvalidSignature) {
		t.Errorf("code = %q, want %q", body.Code, model.KindInvalidSignature)
	}
}

// TestWriteErrorResponse_HidesInternalCause は内部エラーの原因がレスポンスに含まれないことを検証する。
func TestWriteErrorResponse_HidesInternalCause(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusInternalServerError, errors.New("pq: password authentication failed"))

	raw := w.Body.String()
	if strings.Contains(raw, "pq:") {
		t.Errorf("response leaks internal detail: %s", raw)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Error != model.MsgServerError || body.Code != string(model.KindInternal) {
		t.Errorf("body = %+v, want Server error/INTERNAL", body)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	want := `{"error":"Server error","code":"INTERNAL"}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}
