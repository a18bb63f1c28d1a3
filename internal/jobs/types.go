package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
)

// Type names a pipeline stage.
type Type string

const (
	TypeAnalyze         Type = "analyze"
	TypeTransitionAudio Type = "transition_audio"
	TypeMix             Type = "mix"
	TypeDraftTransition Type = "draft_transition"
	TypeChatReorder     Type = "chat_reorder"
	// TypeProgress only appears on results; it never mutates state.
	TypeProgress Type = "progress"
)

var types = []Type{TypeAnalyze, TypeTransitionAudio, TypeMix, TypeDraftTransition, TypeChatReorder, TypeProgress}

// Types returns every known stage type.
func Types() []Type {
	out := make([]Type, len(types))
	copy(out, types)
	return out
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType converts a string into a Type.
func ParseType(value string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown job type %q", value)
	}
	return t, nil
}

// Job is the envelope submitted to the worker.
type Job struct {
	ID           string              `json:"id"`
	Type         Type                `json:"type"`
	EntityKind   pipeline.EntityKind `json:"entity_kind"`
	EntityID     string              `json:"entity_id"`
	TrackID      string              `json:"track_id,omitempty"`
	TransitionID string              `json:"transition_id,omitempty"`
	Payload      json.RawMessage     `json:"payload"`
	SubmittedAt  time.Time           `json:"submitted_at"`
}

// Result is the envelope the worker returns. It carries either a success
// body or an error message, never both.
type Result struct {
	JobID        string              `json:"job_id,omitempty"`
	Type         Type                `json:"type"`
	EntityKind   pipeline.EntityKind `json:"entity_kind"`
	EntityID     string              `json:"entity_id"`
	TrackID      string              `json:"track_id,omitempty"`
	TransitionID string              `json:"transition_id,omitempty"`
	Result       json.RawMessage     `json:"result,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Failed reports whether the worker reported an error.
func (r Result) Failed() bool {
	return strings.TrimSpace(r.Error) != ""
}

// Validate checks the envelope before dispatch.
func (r Result) Validate() error {
	if !r.Type.Valid() {
		return services.Wrap(services.ErrValidation, "jobs", "validate result", fmt.Sprintf("unknown type %q", r.Type), nil)
	}
	if !r.EntityKind.Valid() {
		return services.Wrap(services.ErrValidation, "jobs", "validate result", fmt.Sprintf("unknown entity kind %q", r.EntityKind), nil)
	}
	if strings.TrimSpace(r.EntityID) == "" {
		return services.Wrap(services.ErrValidation, "jobs", "validate result", "entity id is required", nil)
	}
	hasBody := len(r.Result) > 0 && string(r.Result) != "null"
	if r.Failed() && hasBody {
		return services.Wrap(services.ErrValidation, "jobs", "validate result", "result carries both a body and an error", nil)
	}
	if !r.Failed() && !hasBody {
		return services.Wrap(services.ErrValidation, "jobs", "validate result", "result carries neither a body nor an error", nil)
	}
	return nil
}

// Decode unmarshals the success body into v.
func (r Result) Decode(v any) error {
	if err := json.Unmarshal(r.Result, v); err != nil {
		return services.Wrap(services.ErrValidation, "jobs", "decode result", string(r.Type)+" body", err)
	}
	return nil
}

// ResultFor builds a success result answering job.
func ResultFor(job Job, body any) (Result, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s result: %w", job.Type, err)
	}
	result := replyTo(job)
	result.Result = data
	return result, nil
}

// FailureFor builds an error result answering job.
func FailureFor(job Job, message string) Result {
	result := replyTo(job)
	result.Error = message
	return result
}

func replyTo(job Job) Result {
	return Result{
		JobID:        job.ID,
		Type:         job.Type,
		EntityKind:   job.EntityKind,
		EntityID:     job.EntityID,
		TrackID:      job.TrackID,
		TransitionID: job.TransitionID,
	}
}

func newJob(typ Type, kind pipeline.EntityKind, entityID string, payload any) (Job, error) {
	job := Job{
		ID:          uuid.NewString(),
		Type:        typ,
		EntityKind:  kind,
		EntityID:    entityID,
		SubmittedAt: time.Now().UTC(),
	}
	return withPayload(job, payload)
}

func withPayload(job Job, payload any) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", job.Type, err)
	}
	job.Payload = data
	return job, nil
}
