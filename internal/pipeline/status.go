package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition reports a status move the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ProjectStatus is the lifecycle of a mix project.
type ProjectStatus string

const (
	ProjectCreated   ProjectStatus = "CREATED"
	ProjectUploading ProjectStatus = "UPLOADING"
	ProjectAnalyzing ProjectStatus = "ANALYZING"
	ProjectOrdering  ProjectStatus = "ORDERING"
	ProjectReady     ProjectStatus = "READY"
	ProjectMixing    ProjectStatus = "MIXING"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectFailed    ProjectStatus = "FAILED"
)

// DraftStatus is the lifecycle of a two-track draft.
type DraftStatus string

const (
	DraftCreated    DraftStatus = "CREATED"
	DraftUploading  DraftStatus = "UPLOADING"
	DraftAnalyzing  DraftStatus = "ANALYZING"
	DraftReady      DraftStatus = "READY"
	DraftGenerating DraftStatus = "GENERATING"
	DraftCompleted  DraftStatus = "COMPLETED"
	DraftFailed     DraftStatus = "FAILED"
)

// TransitionStatus tracks a draft's transition-audio sub-process.
type TransitionStatus string

const (
	TransitionPending    TransitionStatus = "PENDING"
	TransitionProcessing TransitionStatus = "PROCESSING"
	TransitionCompleted  TransitionStatus = "COMPLETED"
	TransitionError      TransitionStatus = "ERROR"
)

// AudioStatus tracks rendering of a single project transition.
type AudioStatus string

const (
	AudioPending    AudioStatus = "PENDING"
	AudioProcessing AudioStatus = "PROCESSING"
	AudioCompleted  AudioStatus = "COMPLETED"
	AudioError      AudioStatus = "ERROR"
)

var projectChain = []ProjectStatus{
	ProjectCreated,
	ProjectUploading,
	ProjectAnalyzing,
	ProjectOrdering,
	ProjectReady,
	ProjectMixing,
	ProjectCompleted,
	ProjectFailed,
}

var draftChain = []DraftStatus{
	DraftCreated,
	DraftUploading,
	DraftAnalyzing,
	DraftReady,
	DraftGenerating,
	DraftCompleted,
	DraftFailed,
}

// ProjectStatuses returns the ordered list of project statuses.
func ProjectStatuses() []ProjectStatus {
	cp := make([]ProjectStatus, len(projectChain))
	copy(cp, projectChain)
	return cp
}

// DraftStatuses returns the ordered list of draft statuses.
func DraftStatuses() []DraftStatus {
	cp := make([]DraftStatus, len(draftChain))
	copy(cp, draftChain)
	return cp
}

// ParseProjectStatus converts a string into a known ProjectStatus.
func ParseProjectStatus(value string) (ProjectStatus, bool) {
	normalized := ProjectStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range projectChain {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ParseDraftStatus converts a string into a known DraftStatus.
func ParseDraftStatus(value string) (DraftStatus, bool) {
	normalized := DraftStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range draftChain {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsBusy reports whether the project is waiting on pipeline work and should
// not accept user actions that recompute its order.
func (s ProjectStatus) IsBusy() bool {
	switch s {
	case ProjectUploading, ProjectAnalyzing, ProjectOrdering, ProjectMixing:
		return true
	default:
		return false
	}
}

// IsBusy reports whether the draft is waiting on pipeline work.
func (s DraftStatus) IsBusy() bool {
	switch s {
	case DraftUploading, DraftAnalyzing, DraftGenerating:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a rendered transition has finished either way.
func (s AudioStatus) IsTerminal() bool {
	return s == AudioCompleted || s == AudioError
}

func invalid(kind string, from, to string) error {
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, kind, from, to)
}
