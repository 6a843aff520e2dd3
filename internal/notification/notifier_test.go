package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/penang-gov/surveillance/internal/shared/config"
	"github.com/penang-gov/surveillance/internal/shared/events"
)

func caseEvent(eventType string, data map[string]any) events.Event {
	return events.Event{
		ID:        "evt-1",
		Type:      eventType,
		Source:    "case-api",
		Timestamp: time.Now(),
		Data:      data,
	}
}

func TestBuildAlert(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Event
		wantKind string
		wantSent bool
	}{
		{
			name: "new case alerts",
			event: caseEvent(events.TypeCaseRegistered, map[string]any{
				"case_number": "MSL-2024-000123",
				"district":    "Timur Laut",
			}),
			wantKind: "new_case",
			wantSent: true,
		},
		{
			name: "positive lab result alerts",
			event: caseEvent(events.TypeLabResult, map[string]any{
				"case_number": "MSL-2024-000123",
				"test":        "pcr",
				"positive":    true,
			}),
			wantKind: "positive_lab_result",
			wantSent: true,
		},
		{
			name: "negative lab result is quiet",
			event: caseEvent(events.TypeLabResult, map[string]any{
				"case_number": "MSL-2024-000123",
				"test":        "igm",
				"positive":    false,
			}),
			wantSent: false,
		},
		{
			name: "confirmed finalization alerts",
			event: caseEvent(events.TypeCaseFinalized, map[string]any{
				"case_number":    "MSL-2024-000123",
				"classification": "lab_confirmed_measles",
			}),
			wantKind: "case_finalized",
			wantSent: true,
		},
		{
			name: "discarded finalization is quiet",
			event: caseEvent(events.TypeCaseFinalized, map[string]any{
				"case_number":    "MSL-2024-000123",
				"classification": "discarded",
			}),
			wantSent: false,
		},
		{
			name:     "unrelated event is quiet",
			event:    caseEvent("case.viewed", nil),
			wantSent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, sent := buildAlert(tt.event)
			if sent != tt.wantSent {
				t.Fatalf("sent = %v, want %v", sent, tt.wantSent)
			}
			if sent && alert.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", alert.Kind, tt.wantKind)
			}
		})
	}
}

func TestWebhookSender(t *testing.T) {
	var received Alert
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.NotificationConfig{WebhookURL: server.URL})
	alert := Alert{ID: "evt-1", Kind: "new_case", Subject: "New suspected measles case MSL-2024-000123"}

	if err := sender.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if received.ID != "evt-1" || received.Kind != "new_case" {
		t.Errorf("received = %+v", received)
	}
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.NotificationConfig{WebhookURL: server.URL})
	if err := sender.Send(context.Background(), Alert{ID: "evt-1"}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
