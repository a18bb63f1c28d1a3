package jobs

import (
	"strings"

	"mixcraft/internal/chatlog"
	"mixcraft/internal/compat"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
)

// AnalyzeJob builds the analysis job for one uploaded track.
func AnalyzeJob(track *store.Track) (Job, error) {
	if track == nil {
		return Job{}, services.Wrap(services.ErrValidation, "jobs", "analyze job", "track is required", nil)
	}
	job, err := newJob(TypeAnalyze, track.OwnerKind, track.OwnerID, AnalyzePayload{
		TrackID:  track.ID,
		FilePath: track.FilePath,
	})
	if err != nil {
		return Job{}, err
	}
	job.TrackID = track.ID
	return job, nil
}

// TransitionAudioJob builds the render job for one project transition.
func TransitionAudioJob(transition *store.Transition, from, to TrackRef) (Job, error) {
	job, err := newJob(TypeTransitionAudio, pipeline.EntityProject, transition.ProjectID, TransitionAudioPayload{
		TransitionID: transition.ID,
		Position:     transition.Position,
		From:         from,
		To:           to,
	})
	if err != nil {
		return Job{}, err
	}
	job.TransitionID = transition.ID
	return job, nil
}

// MixJob builds the final assembly job. refs must follow the project's order.
func MixJob(projectID string, refs []TrackRef, transitions []*store.Transition) (Job, error) {
	if len(refs) < 2 {
		return Job{}, services.Wrap(services.ErrValidation, "jobs", "mix job", "a mix needs at least two ordered tracks", nil)
	}
	configs := make([]TransitionConfig, 0, len(transitions))
	for _, tr := range transitions {
		configs = append(configs, TransitionConfig{
			TransitionID: tr.ID,
			Position:     tr.Position,
			FromTrackID:  tr.FromTrackID,
			ToTrackID:    tr.ToTrackID,
			Score:        tr.Score,
			Label:        tr.Label,
			AudioFile:    tr.AudioFile,
		})
	}
	return newJob(TypeMix, pipeline.EntityProject, projectID, MixPayload{Tracks: refs, Transitions: configs})
}

// DraftTransitionJob builds the preview render job for a draft's two slots.
func DraftTransitionJob(draftID string, a, b TrackRef, pair *compat.Pair) (Job, error) {
	return newJob(TypeDraftTransition, pipeline.EntityDraft, draftID, DraftTransitionPayload{A: a, B: b, Compatibility: pair})
}

// ChatReorderJob builds the conversational reorder job. The job ID doubles
// as the user message ID so the reply can be correlated.
func ChatReorderJob(projectID, message string, tracks []TrackSummary, order []string, history []chatlog.Message) (Job, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Job{}, services.Wrap(services.ErrValidation, "jobs", "chat job", "message is required", nil)
	}
	job, err := newJob(TypeChatReorder, pipeline.EntityProject, projectID, nil)
	if err != nil {
		return Job{}, err
	}
	return withPayload(job, ChatReorderPayload{
		MessageID:    job.ID,
		Message:      message,
		Tracks:       tracks,
		CurrentOrder: order,
		History:      history,
	})
}
