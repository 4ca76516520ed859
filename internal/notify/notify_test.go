package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhook_Deliver(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 5*time.Second)
	err := w.Deliver(context.Background(), "Flood Warning", "Heavy rain expected", map[string]string{"alertId": "a1"})
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if got.Title != "Flood Warning" || got.Body != "Heavy rain expected" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if got.Metadata["alertId"] != "a1" {
		t.Errorf("unexpected metadata: %v", got.Metadata)
	}
}

func TestWebhook_Deliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 5*time.Second)
	if err := w.Deliver(context.Background(), "t", "b", nil); err == nil {
		t.Error("expected error on non-2xx response")
	}
}

func TestLog_Deliver(t *testing.T) {
	if err := (Log{}).Deliver(context.Background(), "t", "b", nil); err != nil {
		t.Errorf("log delivery never fails: %v", err)
	}
}
