package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/penang-gov/surveillance/internal/shared/config"
	"github.com/penang-gov/surveillance/internal/shared/events"
)

// Alert is an outbound duty notification
type Alert struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sender delivers alerts to the duty channel
type Sender interface {
	Send(ctx context.Context, alert Alert) error
}

// WebhookSender posts alerts as JSON to a configured webhook
type WebhookSender struct {
	url  string
	http *http.Client
}

// NewWebhookSender creates a webhook sender from config
func NewWebhookSender(cfg config.NotificationConfig) *WebhookSender {
	return &WebhookSender{
		url:  cfg.WebhookURL,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert
func (s *WebhookSender) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes alerts to the application log; used when no webhook
// is configured
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a log sender
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "notification").Logger()}
}

// Send logs the alert
func (s *LogSender) Send(_ context.Context, alert Alert) error {
	s.log.Info().
		Str("kind", alert.Kind).
		Str("subject", alert.Subject).
		Msg(alert.Body)
	return nil
}

// Notifier subscribes to case events and alerts the epidemiologist on duty
type Notifier struct {
	bus    events.EventBus
	sender Sender
	log    zerolog.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(bus events.EventBus, sender Sender, log zerolog.Logger) *Notifier {
	return &Notifier{
		bus:    bus,
		sender: sender,
		log:    log.With().Str("component", "notification").Logger(),
	}
}

// Start subscribes to all case events
func (n *Notifier) Start(ctx context.Context) error {
	return n.bus.Subscribe(ctx, "case.*", n.handleEvent)
}

// handleEvent translates a bus event into a duty alert
func (n *Notifier) handleEvent(ctx context.Context, event events.Event) error {
	alert, ok := buildAlert(event)
	if !ok {
		return nil
	}

	if err := n.sender.Send(ctx, alert); err != nil {
		n.log.Error().Err(err).
			Str("event_type", event.Type).
			Msg("sending duty alert failed")
		return err
	}
	return nil
}

// buildAlert maps a case event onto an alert; events that need no duty
// action are skipped
func buildAlert(event events.Event) (Alert, bool) {
	// Events arriving off the wire carry their payload as a generic map
	data, _ := event.Data.(map[string]any)
	caseNumber, _ := data["case_number"].(string)

	switch event.Type {
	case events.TypeCaseRegistered:
		district, _ := data["district"].(string)
		return Alert{
			ID:        event.ID,
			Kind:      "new_case",
			Subject:   fmt.Sprintf("New suspected measles case %s", caseNumber),
			Body:      fmt.Sprintf("A suspected measles case was registered in %s and awaits investigation.", district),
			Data:      data,
			CreatedAt: event.Timestamp,
		}, true

	case events.TypeLabResult:
		test, _ := data["test"].(string)
		positive, _ := data["positive"].(bool)
		if !positive {
			return Alert{}, false
		}
		return Alert{
			ID:        event.ID,
			Kind:      "positive_lab_result",
			Subject:   fmt.Sprintf("Positive %s result for case %s", test, caseNumber),
			Body:      fmt.Sprintf("The state laboratory reported a positive %s result for case %s.", test, caseNumber),
			Data:      data,
			CreatedAt: event.Timestamp,
		}, true

	case events.TypeCaseFinalized:
		classification, _ := data["classification"].(string)
		// Discarded cases close quietly
		if classification == "discarded" {
			return Alert{}, false
		}
		return Alert{
			ID:        event.ID,
			Kind:      "case_finalized",
			Subject:   fmt.Sprintf("Case %s finalized", caseNumber),
			Body:      fmt.Sprintf("Case %s was finalized as %s.", caseNumber, classification),
			Data:      data,
			CreatedAt: event.Timestamp,
		}, true
	}

	return Alert{}, false
}
