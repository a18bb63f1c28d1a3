package store

import (
	"encoding/json"
	"time"

	"mixcraft/internal/compat"
	"mixcraft/internal/pipeline"
)

// Project is a mix in progress. OrderedTracks is always a permutation of a
// subset of the project's track IDs.
type Project struct {
	ID              string
	Name            string
	Status          pipeline.ProjectStatus
	OrderedTracks   []string
	AverageMixScore int
	OutputFile      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Draft is a two-track preview.
type Draft struct {
	ID               string
	Name             string
	Status           pipeline.DraftStatus
	TransitionStatus pipeline.TransitionStatus
	Compatibility    *compat.Pair
	TransitionFile   string
	TransitionMeta   json.RawMessage
	CutPoints        json.RawMessage
	ErrorMessage     string
	TransitionError  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Draft track slots.
const (
	SlotA = "A"
	SlotB = "B"
)

// Track is an uploaded audio file owned by a project or one draft slot.
type Track struct {
	ID              string
	OwnerKind       pipeline.EntityKind
	OwnerID         string
	Slot            string
	Position        int
	FilePath        string
	Title           string
	DurationSeconds float64
	CreatedAt       time.Time
}

// Analysis is the stored result of analyzing one track. Core is nil when the
// worker did not return all three scoring fields; such a track counts as
// analyzed but is excluded from scoring.
type Analysis struct {
	TrackID   string
	Core      *compat.Features
	Aux       AnalysisAux
	UpdatedAt time.Time
}

// AnalysisAux holds fields the scorer ignores but later stages forward to
// the worker.
type AnalysisAux struct {
	Danceability float64         `json:"danceability,omitempty"`
	Loudness     float64         `json:"loudness,omitempty"`
	IntroEnd     float64         `json:"intro_end,omitempty"`
	OutroStart   float64         `json:"outro_start,omitempty"`
	Beats        []float64       `json:"beats,omitempty"`
	Mixability   json.RawMessage `json:"mixability,omitempty"`
}

// Scorable reports whether the analysis can feed the scorer.
func (a *Analysis) Scorable() bool {
	return a != nil && a.Core != nil && a.Core.Complete()
}

// Transition is the stored score and audio state for one adjacent pair.
type Transition struct {
	ID               string
	ProjectID        string
	Position         int
	FromTrackID      string
	ToTrackID        string
	Score            int
	HarmonicScore    int
	BPMScore         int
	EnergyScore      int
	Label            string
	BPMDifference    float64
	EnergyDifference float64
	AudioStatus      pipeline.AudioStatus
	AudioFile        string
	AudioError       string
	UpdatedAt        time.Time
}

// MixSegment is one rendered piece of the final mix.
type MixSegment struct {
	ProjectID    string  `json:"-"`
	Position     int     `json:"position"`
	Kind         string  `json:"kind"`
	TrackID      string  `json:"track_id,omitempty"`
	FilePath     string  `json:"file_path,omitempty"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// AudioCounts summarizes rendering progress across a project's transitions.
type AudioCounts struct {
	Total      int
	Completed  int
	Errored    int
	Processing int
	Pending    int
}

// Outstanding is the number of transitions still waiting on a result.
func (c AudioCounts) Outstanding() int {
	return c.Processing + c.Pending
}
