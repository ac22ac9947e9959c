package generator

import (
	"errors"
	"slices"
	"sync"
)

// State is the tagged state of one tool.
type State string

const (
	StateIdle         State = "idle"
	StateSubmitted    State = "submitted"
	StateDispatching  State = "dispatching"
	StateMerging      State = "merging"
	StateReady        State = "ready"
	StateErrored      State = "errored"
	StateRegenerating State = "regenerating"
)

// Stage is one call to the Client within a tool's orchestration.
type Stage string

const (
	StageText         Stage = "text"
	StageImage        Stage = "image"
	StageCaption      Stage = "caption"
	StageHeroImage    Stage = "hero_image"
	StageAnatomyImage Stage = "anatomy_image"
)

// ErrBusy is returned when a regeneration is asked for while the tool is still working.
var ErrBusy = errors.New("tool is busy")

// Snapshot is a consistent copy of one tool's state.
type Snapshot[R any] struct {
	Tool    Tool       `json:"tool"`
	State   State      `json:"state"`
	Pending []Stage    `json:"pending,omitempty"`
	Result  *R         `json:"result,omitempty"`
	Error   *ToolError `json:"error,omitempty"`
}

// Loading reports whether the tool is in a foreground working state.
func (s Snapshot[R]) Loading() bool {
	switch s.State {
	case StateSubmitted, StateDispatching, StateMerging, StateRegenerating:
		return true
	}
	return false
}

// ticket identifies the work a completion belongs to. gen guards stages that
// replace the result; id guards patches to fields of an existing result.
type ticket struct {
	gen uint64
	id  string
}

// slot holds the latest request and result of one tool.
type slot[Q any, R any] struct {
	mu      sync.Mutex
	tool    Tool
	state   State
	pending []Stage
	request *Q
	result  *R
	err     *ToolError
	gen     uint64
	// foreground is the stage holding the slot in a working state; background
	// stages complete without changing state.
	foreground Stage

	idOf     func(*R) string
	onChange func(*R)
}

func newSlot[Q any, R any](tool Tool, idOf func(*R) string) *slot[Q, R] {
	return &slot[Q, R]{tool: tool, state: StateIdle, idOf: idOf}
}

func (s *slot[Q, R]) snapshot() Snapshot[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *slot[Q, R]) snapshotLocked() Snapshot[R] {
	snap := Snapshot[R]{Tool: s.tool, State: s.state, Pending: slices.Clone(s.pending), Error: s.err}
	if s.result != nil {
		cp := *s.result
		snap.Result = &cp
	}
	return snap
}

// lastRequest returns the retained request, if any.
func (s *slot[Q, R]) lastRequest() (Q, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request == nil {
		var zero Q
		return zero, false
	}
	return *s.request, true
}

// submit starts a new submission; the previous result is discarded and every
// completion still in flight for it becomes stale.
func (s *slot[Q, R]) submit(req Q, first Stage) ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateSubmitted
	s.request = &req
	s.result = nil
	s.err = nil
	s.pending = []Stage{first}
	s.foreground = first
	s.state = StateDispatching
	return ticket{gen: s.gen}
}

// regenerate enters Regenerating for stage. A result-replacing stage bumps the
// generation so an older replacement still in flight is dropped.
func (s *slot[Q, R]) regenerate(stage Stage, replaces bool, check func(req *Q, cur *R) error) (ticket, *R, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ticket{}, nil, ErrNothingToRegenerate
	}
	switch s.state {
	case StateSubmitted, StateDispatching, StateMerging, StateRegenerating:
		return ticket{}, nil, ErrBusy
	}
	if slices.Contains(s.pending, stage) {
		return ticket{}, nil, ErrBusy
	}
	if check != nil {
		if err := check(s.request, s.result); err != nil {
			return ticket{}, nil, err
		}
	}
	if replaces {
		s.gen++
	}
	s.state = StateRegenerating
	s.foreground = stage
	// A failure of another stage is still unresolved and stays visible.
	if s.err != nil && s.err.Stage == stage {
		s.err = nil
	}
	s.pending = appendStage(s.pending, stage)
	cp := *s.result
	return ticket{gen: s.gen, id: s.idOf(s.result)}, &cp, nil
}

// replace merges a result produced by a result-replacing stage. next lists the
// stages that still have to run in the foreground, background those that run
// after the tool is ready. It reports false for a stale completion.
func (s *slot[Q, R]) replace(t ticket, done Stage, build func(cur *R) *R, next []Stage, background []Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.gen != s.gen {
		return false
	}
	s.state = StateMerging
	s.result = build(s.result)
	s.pending = removeStage(s.pending, done)
	for _, st := range next {
		s.pending = appendStage(s.pending, st)
	}
	for _, st := range background {
		s.pending = appendStage(s.pending, st)
	}
	if len(next) > 0 {
		s.foreground = next[0]
		s.state = StateDispatching
	} else {
		s.settle()
	}
	s.changed()
	return true
}

// patch applies a field update to the live result. A completion whose result
// was replaced or cleared in the meantime is dropped.
func (s *slot[Q, R]) patch(t ticket, done Stage, apply func(r *R)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil || s.idOf(s.result) != t.id {
		return false
	}
	apply(s.result)
	s.pending = removeStage(s.pending, done)
	if s.foreground == done {
		s.settle()
	}
	s.changed()
	return true
}

// fail records a stage failure. Results already merged stay visible.
func (s *slot[Q, R]) fail(t ticket, stage Stage, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.id != "" {
		if s.result == nil || s.idOf(s.result) != t.id {
			return false
		}
	} else if t.gen != s.gen {
		return false
	}
	kind := KindGenerationFailure
	if s.result != nil {
		kind = KindPartialFailure
	}
	s.pending = removeStage(s.pending, stage)
	s.err = newToolError(s.tool, stage, kind, cause)
	// A background failure during foreground work surfaces once that work settles.
	if s.foreground == "" || s.foreground == stage {
		s.foreground = ""
		s.state = StateErrored
	}
	return true
}

// settle leaves the working state after the foreground stage resolved.
func (s *slot[Q, R]) settle() {
	s.foreground = ""
	if s.err != nil {
		s.state = StateErrored
	} else {
		s.state = StateReady
	}
}

// edit mutates the live result in place outside any stage.
func (s *slot[Q, R]) edit(apply func(r *R)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return false
	}
	apply(s.result)
	s.changed()
	return true
}

// restore installs a result loaded from durable storage.
func (s *slot[Q, R]) restore(r *R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
	s.foreground = ""
	s.state = StateReady
}

func (s *slot[Q, R]) dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return
	}
	s.err = nil
	if s.foreground != "" {
		return
	}
	if s.result != nil {
		s.state = StateReady
	} else {
		s.state = StateIdle
	}
}

// reset clears request and result; late completions become stale.
func (s *slot[Q, R]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateIdle
	s.request = nil
	s.result = nil
	s.err = nil
	s.pending = nil
	s.foreground = ""
}

func (s *slot[Q, R]) changed() {
	if s.onChange != nil && s.result != nil {
		s.onChange(s.result)
	}
}

func appendStage(list []Stage, st Stage) []Stage {
	if slices.Contains(list, st) {
		return list
	}
	return append(list, st)
}

func removeStage(list []Stage, st Stage) []Stage {
	return slices.DeleteFunc(list, func(x Stage) bool { return x == st })
}
