package pipeline

import "sync"

// Stage is a named step of an extraction run.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageReading           Stage = "reading"
	StageConverting        Stage = "converting"
	StageExtractingText    Stage = "extracting_text"
	StageExtractingRecords Stage = "extracting_records"
	StageSaving            Stage = "saving"
	StageDone              Stage = "done"
	StageError             Stage = "error"
)

// Progress is a point-in-time snapshot of a run. The two extraction stages
// run concurrently, so Completed carries which of them have finished
// independently of the current stage.
type Progress struct {
	Stage     Stage   `json:"stage"`
	Completed []Stage `json:"completed"`
	Error     string  `json:"error,omitempty"`
}

// Tracker records run progress for concurrent observers. One run at a time;
// Begin rejects overlapping runs.
type Tracker struct {
	mu        sync.Mutex
	stage     Stage
	completed []Stage
	errMsg    string
}

// NewTracker returns a tracker in the idle state.
func NewTracker() *Tracker {
	return &Tracker{stage: StageIdle}
}

// Begin starts a new run, resetting progress. Returns false when a run is
// already in flight.
func (t *Tracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running() {
		return false
	}
	t.stage = StageReading
	t.completed = nil
	t.errMsg = ""
	return true
}

// running reports whether a run is in flight. Done and error are at-rest
// states; a new run may begin from either.
func (t *Tracker) running() bool {
	switch t.stage {
	case StageIdle, StageDone, StageError:
		return false
	}
	return true
}

// Busy reports whether a run is currently in flight.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running()
}

// Advance moves the run to the given stage.
func (t *Tracker) Advance(s Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = s
}

// Complete marks a stage as finished without changing the current stage.
func (t *Tracker) Complete(s Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = append(t.completed, s)
}

// Fail moves the run to the error state with a message for observers.
func (t *Tracker) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = StageError
	t.errMsg = msg
}

// Done marks the run finished.
func (t *Tracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = StageDone
}

// Reset returns the tracker to idle. No-op while a run is in flight.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running() {
		return
	}
	t.stage = StageIdle
	t.completed = nil
	t.errMsg = ""
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	completed := make([]Stage, len(t.completed))
	copy(completed, t.completed)
	return Progress{Stage: t.stage, Completed: completed, Error: t.errMsg}
}
