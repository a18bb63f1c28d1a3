package pipeline

// Moves along the chain, plus the re-entrant edges user actions rely on:
// READY/COMPLETED/FAILED -> UPLOADING when tracks are added, -> ORDERING when
// the order is recomputed, and MIXING -> READY when rendering ends without a
// final file or when transition audio finishes.
var projectMoves = map[ProjectStatus][]ProjectStatus{
	ProjectCreated:   {ProjectUploading},
	ProjectUploading: {ProjectAnalyzing},
	ProjectAnalyzing: {ProjectOrdering},
	ProjectOrdering:  {ProjectReady},
	ProjectReady:     {ProjectUploading, ProjectOrdering, ProjectMixing},
	ProjectMixing:    {ProjectCompleted, ProjectReady},
	ProjectCompleted: {ProjectUploading, ProjectOrdering, ProjectMixing},
	ProjectFailed:    {ProjectUploading, ProjectOrdering, ProjectMixing},
}

var draftMoves = map[DraftStatus][]DraftStatus{
	DraftCreated:    {DraftUploading},
	DraftUploading:  {DraftAnalyzing},
	DraftAnalyzing:  {DraftReady},
	DraftReady:      {DraftUploading, DraftGenerating},
	DraftGenerating: {DraftCompleted, DraftReady},
	DraftCompleted:  {DraftUploading, DraftGenerating},
	DraftFailed:     {DraftUploading, DraftGenerating},
}

var transitionMoves = map[TransitionStatus][]TransitionStatus{
	TransitionPending:    {TransitionProcessing},
	TransitionProcessing: {TransitionCompleted, TransitionError},
	TransitionCompleted:  {TransitionProcessing},
	TransitionError:      {TransitionProcessing},
}

// CanMoveProject reports whether a project may move from one status to another.
// Staying in place is always allowed so re-delivered results are harmless.
func CanMoveProject(from, to ProjectStatus) bool {
	if from == to {
		return true
	}
	if to == ProjectFailed {
		return from != ProjectFailed
	}
	for _, next := range projectMoves[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanMoveDraft reports whether a draft may move from one status to another.
func CanMoveDraft(from, to DraftStatus) bool {
	if from == to {
		return true
	}
	if to == DraftFailed {
		return from != DraftFailed
	}
	for _, next := range draftMoves[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanMoveTransition reports whether a draft transition sub-process may move.
func CanMoveTransition(from, to TransitionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitionMoves[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProjectMove validates a project status change.
func ProjectMove(from, to ProjectStatus) error {
	if !CanMoveProject(from, to) {
		return invalid("project", string(from), string(to))
	}
	return nil
}

// DraftMove validates a draft status change.
func DraftMove(from, to DraftStatus) error {
	if !CanMoveDraft(from, to) {
		return invalid("draft", string(from), string(to))
	}
	return nil
}

// TransitionMove validates a draft transition status change.
func TransitionMove(from, to TransitionStatus) error {
	if !CanMoveTransition(from, to) {
		return invalid("draft transition", string(from), string(to))
	}
	return nil
}
