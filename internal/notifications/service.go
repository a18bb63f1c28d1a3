package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mixcraft/internal/config"
	"mixcraft/internal/pipeline"
)

const userAgent = "Mixcraft/0.1.0"

// Event names a notification type.
type Event string

const (
	EventProgress           Event = "progress"
	EventStatusChanged      Event = "status_changed"
	EventAnalysisProgress   Event = "analysis_progress"
	EventOrderReady         Event = "order_ready"
	EventTransitionRendered Event = "transition_rendered"
	EventMixCompleted       Event = "mix_completed"
	EventDraftCompleted     Event = "draft_completed"
	EventChatReply          Event = "chat_reply"
	EventError              Event = "error"
	EventTest               Event = "test"
)

// Payload keys shared by every event.
const (
	KeyEntityKind = "entity_kind"
	KeyEntityID   = "entity_id"
)

// Payload carries event fields.
type Payload map[string]any

// ForEntity starts a payload addressed to one project or draft.
func ForEntity(kind pipeline.EntityKind, id string) Payload {
	return Payload{KeyEntityKind: string(kind), KeyEntityID: id}
}

// Entity returns the addressed entity, if any.
func (p Payload) Entity() (pipeline.EntityKind, string, bool) {
	kind, _ := p[KeyEntityKind].(string)
	id, _ := p[KeyEntityID].(string)
	if kind == "" || id == "" {
		return "", "", false
	}
	return pipeline.EntityKind(kind), id, true
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the ntfy notifier when a topic is configured and a
// no-op otherwise.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Noop()
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		completions: cfg.Notifications.Completions,
		failures:    cfg.Notifications.Errors,
	}
}

// Noop returns a Service that drops every event.
func Noop() Service {
	return noopService{}
}

// Multi publishes to every non-nil service and joins their errors.
func Multi(services ...Service) Service {
	filtered := make(multiService, 0, len(services))
	for _, svc := range services {
		if svc == nil {
			continue
		}
		if _, ok := svc.(noopService); ok {
			continue
		}
		filtered = append(filtered, svc)
	}
	switch len(filtered) {
	case 0:
		return Noop()
	case 1:
		return filtered[0]
	}
	return filtered
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	completions bool
	failures    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	name := payload.text("name")
	if name == "" {
		name = "untitled"
	}
	switch event {
	case EventMixCompleted:
		if !n.completions {
			return message{}, false
		}
		body := fmt.Sprintf("🎧 Mix ready: %s", name)
		if output := payload.text("output_file"); output != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, output)
		}
		return message{
			title:    "Mixcraft - Mix Complete",
			body:     body,
			tags:     []string{"mixcraft", "mix", "completed"},
			priority: "high",
		}, true
	case EventDraftCompleted:
		if !n.completions {
			return message{}, false
		}
		body := fmt.Sprintf("🎚️ Preview ready: %s", name)
		if score := payload.text("score"); score != "" {
			body = fmt.Sprintf("%s (score %s)", body, score)
		}
		return message{
			title: "Mixcraft - Preview Ready",
			body:  body,
			tags:  []string{"mixcraft", "draft", "completed"},
		}, true
	case EventError:
		if !n.failures {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if stage := payload.text("stage"); stage != "" {
			builder.WriteString(" during ")
			builder.WriteString(stage)
		}
		if name != "untitled" {
			builder.WriteString(" for ")
			builder.WriteString(name)
		}
		builder.WriteString(": ")
		if text := payload.text("error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Mixcraft - Error",
			body:     builder.String(),
			tags:     []string{"mixcraft", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Mixcraft - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"mixcraft", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

// Without wraps svc so the listed events are never forwarded.
func Without(svc Service, events ...Event) Service {
	if svc == nil || len(events) == 0 {
		return svc
	}
	drop := make(map[Event]struct{}, len(events))
	for _, event := range events {
		drop[event] = struct{}{}
	}
	return filteredService{next: svc, drop: drop}
}

type filteredService struct {
	next Service
	drop map[Event]struct{}
}

func (f filteredService) Publish(ctx context.Context, event Event, payload Payload) error {
	if _, ok := f.drop[event]; ok {
		return nil
	}
	return f.next.Publish(ctx, event, payload)
}
