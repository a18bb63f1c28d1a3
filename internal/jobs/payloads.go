package jobs

import (
	"encoding/json"

	"mixcraft/internal/chatlog"
	"mixcraft/internal/compat"
	"mixcraft/internal/store"
)

// TrackRef is the per-track subset of analysis the worker needs to render.
type TrackRef struct {
	TrackID    string    `json:"track_id"`
	FilePath   string    `json:"file_path"`
	BPM        float64   `json:"bpm,omitempty"`
	Camelot    string    `json:"camelot,omitempty"`
	Energy     float64   `json:"energy,omitempty"`
	Beats      []float64 `json:"beats,omitempty"`
	IntroEnd   float64   `json:"intro_end,omitempty"`
	OutroStart float64   `json:"outro_start,omitempty"`
}

// TrackRefFor combines a track with its analysis. analysis may be nil.
func TrackRefFor(track *store.Track, analysis *store.Analysis) TrackRef {
	ref := TrackRef{TrackID: track.ID, FilePath: track.FilePath}
	if analysis == nil {
		return ref
	}
	if analysis.Core != nil {
		ref.BPM = analysis.Core.BPM
		ref.Camelot = analysis.Core.Camelot
		ref.Energy = analysis.Core.Energy
	}
	ref.Beats = analysis.Aux.Beats
	ref.IntroEnd = analysis.Aux.IntroEnd
	ref.OutroStart = analysis.Aux.OutroStart
	return ref
}

// AnalyzePayload asks the worker to analyze one file.
type AnalyzePayload struct {
	TrackID  string `json:"track_id"`
	FilePath string `json:"file_path"`
}

// AnalyzeResult is the worker's analysis of one track. The three core fields
// are pointers so a missing field is distinguishable from zero.
type AnalyzeResult struct {
	BPM          *float64        `json:"bpm"`
	Camelot      string          `json:"camelot"`
	Energy       *float64        `json:"energy"`
	Danceability float64         `json:"danceability,omitempty"`
	Loudness     float64         `json:"loudness,omitempty"`
	IntroEnd     float64         `json:"intro_end,omitempty"`
	OutroStart   float64         `json:"outro_start,omitempty"`
	Beats        []float64       `json:"beats,omitempty"`
	Duration     float64         `json:"duration,omitempty"`
	Mixability   json.RawMessage `json:"mixability,omitempty"`
}

// Features returns the scoring core, or nil unless every core field is
// present and in range.
func (r AnalyzeResult) Features() *compat.Features {
	if r.BPM == nil || r.Energy == nil {
		return nil
	}
	features := compat.Features{BPM: *r.BPM, Camelot: r.Camelot, Energy: *r.Energy}
	if !features.Complete() {
		return nil
	}
	return &features
}

// Analysis converts the result into the stored form for trackID.
func (r AnalyzeResult) Analysis(trackID string) *store.Analysis {
	return &store.Analysis{
		TrackID: trackID,
		Core:    r.Features(),
		Aux: store.AnalysisAux{
			Danceability: r.Danceability,
			Loudness:     r.Loudness,
			IntroEnd:     r.IntroEnd,
			OutroStart:   r.OutroStart,
			Beats:        r.Beats,
			Mixability:   r.Mixability,
		},
	}
}

// TransitionAudioPayload asks the worker to render one project transition.
type TransitionAudioPayload struct {
	TransitionID string   `json:"transition_id"`
	Position     int      `json:"position"`
	From         TrackRef `json:"from"`
	To           TrackRef `json:"to"`
}

// TransitionAudioResult locates a rendered transition.
type TransitionAudioResult struct {
	AudioFile string `json:"audio_file"`
}

// TransitionConfig is one transition as the mix renderer sees it.
type TransitionConfig struct {
	TransitionID string `json:"transition_id"`
	Position     int    `json:"position"`
	FromTrackID  string `json:"from_track_id"`
	ToTrackID    string `json:"to_track_id"`
	Score        int    `json:"score"`
	Label        string `json:"label"`
	AudioFile    string `json:"audio_file,omitempty"`
}

// MixPayload asks the worker to assemble the final mix.
type MixPayload struct {
	Tracks      []TrackRef         `json:"tracks"`
	Transitions []TransitionConfig `json:"transitions"`
}

// MixResult reports the assembled mix. Error is set when assembly stopped
// short of an output file; any segments already rendered are still listed.
type MixResult struct {
	OutputFile string             `json:"output_file,omitempty"`
	Segments   []store.MixSegment `json:"segments"`
	Error      string             `json:"error,omitempty"`
}

// DraftTransitionPayload asks the worker to render the two-track preview.
type DraftTransitionPayload struct {
	A             TrackRef     `json:"a"`
	B             TrackRef     `json:"b"`
	Compatibility *compat.Pair `json:"compatibility,omitempty"`
}

// DraftTransitionResult carries the rendered preview and its metadata.
type DraftTransitionResult struct {
	TransitionFile string          `json:"transition_file"`
	Meta           json.RawMessage `json:"meta,omitempty"`
	CutPoints      json.RawMessage `json:"cut_points,omitempty"`
}

// TrackSummary describes a track to the conversational reorder assistant.
type TrackSummary struct {
	TrackID string  `json:"track_id"`
	Title   string  `json:"title,omitempty"`
	BPM     float64 `json:"bpm,omitempty"`
	Camelot string  `json:"camelot,omitempty"`
	Energy  float64 `json:"energy,omitempty"`
}

// ChatReorderPayload forwards a user message with the project's context.
type ChatReorderPayload struct {
	MessageID    string            `json:"message_id"`
	Message      string            `json:"message"`
	Tracks       []TrackSummary    `json:"tracks"`
	CurrentOrder []string          `json:"current_order"`
	History      []chatlog.Message `json:"history"`
}

// ChatReorderResult is the assistant's reply, optionally with a new order.
type ChatReorderResult struct {
	Reply string   `json:"reply"`
	Order []string `json:"order,omitempty"`
}

// ProgressResult is an advisory progress report.
type ProgressResult struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Step    string  `json:"step,omitempty"`
	Error   string  `json:"error,omitempty"`
}
