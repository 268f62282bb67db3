package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PipelineState represents the discrete states of one processMessage run.
type PipelineState string

const (
	StateReceived             PipelineState = "received"
	StateLanguageDetected     PipelineState = "language_detected"
	StateConversationResolved PipelineState = "conversation_resolved"
	StateUserMessagePersisted PipelineState = "user_message_persisted"
	StateKnowledgeRetrieved   PipelineState = "knowledge_retrieved"
	StateResponseGenerated    PipelineState = "response_generated"
	StateBotMessagePersisted  PipelineState = "bot_message_persisted"
	StateCompleted            PipelineState = "completed"
)

// pipelineOrder is the only legal path; every state has exactly one successor.
var pipelineOrder = []PipelineState{
	StateReceived,
	StateLanguageDetected,
	StateConversationResolved,
	StateUserMessagePersisted,
	StateKnowledgeRetrieved,
	StateResponseGenerated,
	StateBotMessagePersisted,
	StateCompleted,
}

var nextState = func() map[PipelineState]PipelineState {
	m := make(map[PipelineState]PipelineState, len(pipelineOrder))
	for i := 0; i < len(pipelineOrder)-1; i++ {
		m[pipelineOrder[i]] = pipelineOrder[i+1]
	}
	return m
}()

// StateSnapshot captures a run's state at a point in time.
type StateSnapshot struct {
	State    PipelineState `json:"state"`
	Degraded []string      `json:"degraded,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// StateMachine tracks one pipeline run. A run is owned by a single goroutine,
// so the machine is not synchronized.
//
// Faults never stop progression: a step that had to fall back is recorded
// with MarkDegraded and the run still advances to Completed.
type StateMachine struct {
	state     PipelineState
	degraded  []string
	startTime time.Time
	logger    *zap.Logger
	listeners []func(from, to PipelineState, snap StateSnapshot)
}

// NewStateMachine creates a state machine starting in Received.
func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{
		state:     StateReceived,
		startTime: time.Now(),
		logger:    logger,
	}
}

// State returns the current state.
func (sm *StateMachine) State() PipelineState {
	return sm.state
}

// Snapshot returns a copy of the current runtime state.
func (sm *StateMachine) Snapshot() StateSnapshot {
	degraded := make([]string, len(sm.degraded))
	copy(degraded, sm.degraded)
	return StateSnapshot{
		State:    sm.state,
		Degraded: degraded,
		Elapsed:  time.Since(sm.startTime),
	}
}

// Advance moves to the successor state and returns it.
func (sm *StateMachine) Advance() PipelineState {
	_ = sm.Transition(nextState[sm.state])
	return sm.state
}

// Transition moves to to if it is the successor of the current state.
func (sm *StateMachine) Transition(to PipelineState) error {
	from := sm.state
	if next, ok := nextState[from]; !ok || next != to {
		err := fmt.Errorf("invalid state transition: %s → %s", from, to)
		sm.logger.Error("State machine violation", zap.Error(err))
		return err
	}

	sm.state = to
	snap := sm.Snapshot()

	sm.logger.Debug("State transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	for _, fn := range sm.listeners {
		fn(from, to, snap)
	}
	return nil
}

// OnTransition registers a listener called on every state change.
func (sm *StateMachine) OnTransition(fn func(from, to PipelineState, snap StateSnapshot)) {
	sm.listeners = append(sm.listeners, fn)
}

// MarkDegraded records that the current step used its fallback.
func (sm *StateMachine) MarkDegraded(reason string) {
	sm.degraded = append(sm.degraded, reason)
}

// IsDegraded reports whether any step fell back.
func (sm *StateMachine) IsDegraded() bool {
	return len(sm.degraded) > 0
}

// IsTerminal returns true once the run reached Completed.
func (sm *StateMachine) IsTerminal() bool {
	return sm.state == StateCompleted
}
