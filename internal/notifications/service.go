package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dharter89/GAAP/internal/config"
)

const userAgent = "gaapcheck/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventAuditCompleted Event = "audit_completed"
	EventBatchCompleted Event = "batch_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event-specific values. Unknown keys are ignored.
type Payload map[string]any

// Service publishes audit events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventAuditCompleted: cfg.Notifications.AuditCompleted,
			EventBatchCompleted: cfg.Notifications.AuditCompleted,
			EventError:          cfg.Notifications.Errors,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventAuditCompleted:
		document := payload.text("document")
		grade := payload.text("grade")
		violations := payload.count("violations")
		body := fmt.Sprintf("📊 %s graded %s (%d violations)", document, grade, violations)
		if payload.flag("extractionFailed") {
			body += "\nResponse could not be parsed; review the raw output"
		}
		return message{
			title: "gaapcheck - Audit Complete",
			body:  body,
			tags:  []string{"gaapcheck", "audit", "completed"},
		}, true
	case EventBatchCompleted:
		processed := payload.count("processed")
		failed := payload.count("failed")
		duration := payload.dur("duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		if failed == 0 {
			return message{
				title: "gaapcheck - Batch Complete",
				body:  fmt.Sprintf("Audited %d documents in %s", processed, duration),
				tags:  []string{"gaapcheck", "batch", "completed"},
			}, true
		}
		return message{
			title: "gaapcheck - Batch Complete (with errors)",
			body:  fmt.Sprintf("Audited %d documents, %d failed in %s", processed, failed, duration),
			tags:  []string{"gaapcheck", "batch", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payload.text("error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "gaapcheck - Error",
			body:     builder.String(),
			tags:     []string{"gaapcheck", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "gaapcheck - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"gaapcheck", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) flag(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func (p Payload) dur(key string) time.Duration {
	v, _ := p[key].(time.Duration)
	return v
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
