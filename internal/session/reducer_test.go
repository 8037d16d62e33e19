// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/jeranaias/rigchat/internal/events"
)

// run feeds inputs through Reduce and collects every effect.
func run(s State, inputs ...Input) (State, []Effect) {
	var all []Effect
	for _, in := range inputs {
		var effects []Effect
		s, effects = Reduce(s, in)
		all = append(all, effects...)
	}
	return s, all
}

func countPersist(effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(Persist); ok {
			n++
		}
	}
	return n
}

func hasEffect[T Effect](effects []Effect) bool {
	for _, e := range effects {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

func lastReplace(effects []Effect) (ReplaceContent, bool) {
	var out ReplaceContent
	found := false
	for _, e := range effects {
		if r, ok := e.(ReplaceContent); ok {
			out, found = r, true
		}
	}
	return out, found
}

func begin() Begin {
	return Begin{Seq: 1, TargetMessageID: "m1", ChatID: "c1"}
}

func TestReduce_HappyPath(t *testing.T) {
	s, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1", RequestID: "m1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", RequestID: "m1", Text: "Hel"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", RequestID: "m1", Text: "lo"}},
		Delivered{Seq: 1, Event: events.Complete{StreamID: "s1", RequestID: "m1", Completed: true}},
	)

	if s.Phase != PhaseIdle {
		t.Fatalf("phase = %s, want idle", s.Phase)
	}
	if s.Session.Status != StatusDone {
		t.Errorf("status = %s, want done", s.Session.Status)
	}
	r, ok := lastReplace(effects)
	if !ok || r.Content != "Hello" || r.Streaming {
		t.Errorf("final replace = %+v", r)
	}
	if n := countPersist(effects); n != 1 {
		t.Errorf("persist count = %d, want 1", n)
	}
}

func TestReduce_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		input Input
		want  Phase
	}{
		{"begin from idle", State{}, begin(), PhaseAwaitingStart},
		{"start", State{Phase: PhaseAwaitingStart, Session: Session{Seq: 1, TargetMessageID: "m1"}},
			Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}}, PhaseStreaming},
		{"chunk before start", State{Phase: PhaseAwaitingStart, Session: Session{Seq: 1, TargetMessageID: "m1"}},
			Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "x"}}, PhaseAwaitingStart},
		{"stop while awaiting", State{Phase: PhaseAwaitingStart, Session: Session{Seq: 1}},
			StopRequested{}, PhaseIdle},
		{"stop while idle", State{}, StopRequested{}, PhaseIdle},
		{"timeout", State{Phase: PhaseStreaming, Session: Session{Seq: 1}},
			TimedOut{Seq: 1}, PhaseIdle},
		{"stale timeout", State{Phase: PhaseStreaming, Session: Session{Seq: 2}},
			TimedOut{Seq: 1}, PhaseStreaming},
		{"request failed", State{Phase: PhaseAwaitingStart, Session: Session{Seq: 1}},
			RequestFailed{Seq: 1, Err: "boom"}, PhaseIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Reduce(tt.from, tt.input)
			if got.Phase != tt.want {
				t.Errorf("phase = %s, want %s", got.Phase, tt.want)
			}
		})
	}
}

func TestReduce_DoneChunkThenCompletePersistsOnce(t *testing.T) {
	_, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "hi", Done: true,
			Stats: &events.Stats{CompletionTokens: 2, EvalDurationNanos: 1e9}}},
		Delivered{Seq: 1, Event: events.Complete{StreamID: "s1", Completed: true}},
	)

	if n := countPersist(effects); n != 1 {
		t.Fatalf("persist count = %d, want 1", n)
	}
	if !hasEffect[AttachStats](effects) {
		t.Error("expected stats to be attached")
	}
}

func TestReduce_EmptyDoneChunk(t *testing.T) {
	s, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "abc"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Done: true}},
	)

	if s.Phase != PhaseIdle {
		t.Fatalf("phase = %s, want idle", s.Phase)
	}
	r, _ := lastReplace(effects)
	if r.Content != "abc" || r.Streaming {
		t.Errorf("final replace = %+v", r)
	}
}

func TestReduce_StaleEventsDiscarded(t *testing.T) {
	// session 2 is live for message m2
	s := State{Phase: PhaseStreaming, Session: Session{Seq: 2, StreamID: "s2", TargetMessageID: "m2", Status: StatusActive}}

	stale := []Input{
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "old"}},
		Delivered{Seq: 2, Event: events.Chunk{StreamID: "s1", Text: "old"}},
		Delivered{Seq: 2, Event: events.Chunk{StreamID: "s2", RequestID: "m1", Text: "old"}},
		Delivered{Seq: 2, Event: events.Complete{StreamID: "s1"}},
		Delivered{Seq: 2, Event: events.Cancelled{StreamID: "s1"}},
		Delivered{Seq: 2, Event: events.StreamError{StreamID: "s1", Message: "x"}},
	}
	for _, in := range stale {
		next, effects := Reduce(s, in)
		if next != s {
			t.Errorf("input %#v changed state", in)
		}
		if !hasEffect[Discard](effects) || hasEffect[ReplaceContent](effects) {
			t.Errorf("input %#v should only be discarded, got %#v", in, effects)
		}
	}
}

func TestReduce_StopKeepsPartialContent(t *testing.T) {
	s, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "partial"}},
		StopRequested{},
	)

	if s.Phase != PhaseIdle || s.Session.Status != StatusCancelled {
		t.Fatalf("state = %+v", s)
	}
	var abort Abort
	for _, e := range effects {
		if a, ok := e.(Abort); ok {
			abort = a
		}
	}
	if abort != (Abort{Seq: 1, StreamID: "s1", RequestID: "m1"}) {
		t.Errorf("abort = %+v, want it aimed at session 1", abort)
	}
	if n := countPersist(effects); n != 1 {
		t.Errorf("persist count = %d, want 1", n)
	}

	// the backend's own cancellation arrives after the local stop
	_, late := Reduce(s, Delivered{Seq: 1, Event: events.Cancelled{StreamID: "s1"}})
	if countPersist(late) != 0 {
		t.Error("late cancellation must not persist again")
	}
}

func TestReduce_BackendCancelDoesNotPersist(t *testing.T) {
	s, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "partial"}},
		Delivered{Seq: 1, Event: events.Cancelled{StreamID: "s1"}},
	)

	if s.Phase != PhaseIdle || s.Session.Status != StatusCancelled {
		t.Fatalf("state = %+v", s)
	}
	if countPersist(effects) != 0 {
		t.Error("a backend cancellation must not persist the partial reply")
	}
	if hasEffect[Abort](effects) {
		t.Error("the stream is already gone, no abort expected")
	}
	r, _ := lastReplace(effects)
	if r.Content != "partial" || r.Streaming {
		t.Errorf("final replace = %+v", r)
	}
}

func TestReduce_TimerArmedOncePerSession(t *testing.T) {
	s, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "a"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "b"}},
	)

	armed := 0
	for _, e := range effects {
		if _, ok := e.(ArmTimer); ok {
			armed++
		}
	}
	if armed != 1 {
		t.Errorf("timer armed %d times, want 1", armed)
	}

	s, _ = Reduce(s, TimedOut{Seq: 1})
	if s.Phase != PhaseIdle || s.Session.Content != "ab" {
		t.Errorf("state after timeout = %+v", s)
	}
}

func TestReduce_StopWithNoContentDoesNotPersist(t *testing.T) {
	_, effects := run(State{}, begin(), StopRequested{})
	if countPersist(effects) != 0 {
		t.Error("empty content must not be persisted")
	}
}

func TestReduce_ErrorWithoutContent(t *testing.T) {
	s, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.StreamError{StreamID: "s1", Message: "model not found"}},
	)

	if s.Session.Status != StatusErrored {
		t.Errorf("status = %s, want errored", s.Session.Status)
	}
	r, _ := lastReplace(effects)
	if r.Content != "Error: model not found" {
		t.Errorf("content = %q", r.Content)
	}
	if countPersist(effects) != 0 {
		t.Error("error text must not be persisted")
	}
}

func TestReduce_ErrorWithContentKeepsContent(t *testing.T) {
	s, effects := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "half an answer"}},
		Delivered{Seq: 1, Event: events.StreamError{StreamID: "s1", Message: "connection reset"}},
	)

	if s.Session.Content != "half an answer" {
		t.Errorf("content = %q", s.Session.Content)
	}
	if countPersist(effects) != 1 {
		t.Error("partial content should be persisted")
	}
}

func TestReduce_RequestFailedDefaultText(t *testing.T) {
	_, effects := run(State{}, begin(), RequestFailed{Seq: 1})
	r, _ := lastReplace(effects)
	if r.Content != ErrorPrefix+defaultErrorText {
		t.Errorf("content = %q", r.Content)
	}
}

func TestReduce_BeginWhileLiveFinalizesPrevious(t *testing.T) {
	s, _ := run(State{},
		begin(),
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "first"}},
	)

	s, effects := Reduce(s, Begin{Seq: 2, TargetMessageID: "m2", ChatID: "c1"})
	if s.Session.Seq != 2 || s.Phase != PhaseAwaitingStart {
		t.Fatalf("state = %+v", s)
	}
	r, ok := lastReplace(effects)
	if !ok || r.MessageID != "m1" || r.Streaming {
		t.Errorf("previous target not settled: %+v", r)
	}
}

func TestReduce_NoChatSkipsPersist(t *testing.T) {
	_, effects := run(State{},
		Begin{Seq: 1, TargetMessageID: "m1"},
		Delivered{Seq: 1, Event: events.StreamStart{StreamID: "s1"}},
		Delivered{Seq: 1, Event: events.Chunk{StreamID: "s1", Text: "x", Done: true}},
	)
	if countPersist(effects) != 0 {
		t.Error("no chat id, nothing to persist")
	}
}
