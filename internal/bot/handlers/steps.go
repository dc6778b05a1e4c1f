package handlers

import "sync"

// stage identifies where a user is inside a multi-message input flow.
type stage int

const (
	stageNone stage = iota
	stageFilterMin
	stageFilterMax
	stageFilterRepeats
	stageDepositAmount
)

// stepState is the partial input collected so far.
type stepState struct {
	Stage    stage
	MinPrice int64
	MaxPrice int64
}

// StepTracker holds in-flight multi-step input flows, keyed by user.
// State lives only in memory; navigating back to any menu clears it, and
// a restart simply forgets unfinished flows.
type StepTracker struct {
	mu    sync.Mutex
	flows map[int64]stepState
}

// NewStepTracker creates an empty tracker.
func NewStepTracker() *StepTracker {
	return &StepTracker{flows: make(map[int64]stepState)}
}

// Start begins a flow for the user at the given stage, discarding any
// previous unfinished flow.
func (t *StepTracker) Start(userID int64, s stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flows[userID] = stepState{Stage: s}
}

// Current returns the user's in-flight state, if any.
func (t *StepTracker) Current(userID int64) (stepState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.flows[userID]
	return st, ok
}

// Set replaces the user's in-flight state.
func (t *StepTracker) Set(userID int64, st stepState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flows[userID] = st
}

// Clear forgets the user's in-flight state.
func (t *StepTracker) Clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.flows, userID)
}
