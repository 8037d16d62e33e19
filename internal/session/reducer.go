// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// PHASES
// =============================================================================

// Phase is the controller's position in the stream lifecycle.
//
//	idle -> awaiting-start -> streaming -> finalizing -> idle
//	                 \            \-> cancelling -> idle
//	                  \-> errored -> idle
//
// Finalizing, cancelling and errored are passed through within a single
// transition; observers see them only as the Status of the last session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingStart
	PhaseStreaming
	PhaseFinalizing
	PhaseCancelling
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingStart:
		return "awaiting-start"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseCancelling:
		return "cancelling"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Live reports whether a session owns the assistant placeholder.
func (p Phase) Live() bool {
	return p == PhaseAwaitingStart || p == PhaseStreaming
}

// Status is the outcome-oriented state of one session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusCompleting Status = "completing"
	StatusDone       Status = "done"
	StatusErrored    Status = "errored"
	StatusCancelled  Status = "cancelled"
)

// =============================================================================
// STATE
// =============================================================================

// Session is the record of one logical stream.
type Session struct {
	Seq             uint64
	StreamID        string
	TargetMessageID string
	ChatID          string
	Status          Status
	Content         string
	Persisted       bool
	Stats           *model.Stats
}

// State is everything the reducer decides on.
type State struct {
	Phase   Phase
	Session Session
}

// =============================================================================
// INPUTS
// =============================================================================

// Input is the closed set of things that can move the state machine.
type Input interface {
	input()
}

// Begin starts a session for a freshly appended assistant placeholder.
type Begin struct {
	Seq             uint64
	TargetMessageID string
	ChatID          string
}

// Delivered wraps a bus event received by the subscription of session Seq.
type Delivered struct {
	Seq   uint64
	Event events.Event
}

// RequestFailed reports that the generation request itself was rejected.
type RequestFailed struct {
	Seq uint64
	Err string
}

// StopRequested is the user's stop action.
type StopRequested struct{}

// TimedOut fires when session Seq saw no terminal event within the timeout window.
type TimedOut struct {
	Seq uint64
}

func (Begin) input()         {}
func (Delivered) input()     {}
func (RequestFailed) input() {}
func (StopRequested) input() {}
func (TimedOut) input()      {}

// =============================================================================
// EFFECTS
// =============================================================================

// Effect is an instruction produced by Reduce for the controller to carry out.
type Effect interface {
	effect()
}

// ReplaceContent rewrites the target message.
type ReplaceContent struct {
	MessageID string
	Content   string
	Streaming bool
}

// AttachStats stores generation stats on a message.
type AttachStats struct {
	MessageID string
	Stats     *model.Stats
}

// Persist appends the assistant turn to storage.
type Persist struct {
	ChatID  string
	Content string
	Stats   *model.Stats
}

// Unsubscribe releases the event subscription of session Seq.
type Unsubscribe struct {
	Seq uint64
}

// ArmTimer starts the timeout guard for session Seq. It is armed once per session.
type ArmTimer struct {
	Seq uint64
}

// StopTimer cancels the timeout guard.
type StopTimer struct{}

// Abort asks the backend to cancel the generation of one session.
// StreamID is empty while the session is still awaiting its start.
type Abort struct {
	Seq       uint64
	StreamID  string
	RequestID string
}

// Discard records that an input was ignored.
type Discard struct {
	Reason string
}

func (ReplaceContent) effect() {}
func (AttachStats) effect()    {}
func (Persist) effect()        {}
func (Unsubscribe) effect()    {}
func (ArmTimer) effect()       {}
func (StopTimer) effect()      {}
func (Abort) effect()          {}
func (Discard) effect()        {}

// ErrorPrefix marks an assistant message that carries a failure instead of a reply.
const ErrorPrefix = "Error: "

// defaultErrorText is used when the backend gives no error message.
const defaultErrorText = "Failed to get response from model"

// =============================================================================
// REDUCER
// =============================================================================

// Reduce computes the next state and the effects needed to reach it.
// It performs no I/O and does not retain s.
func Reduce(s State, in Input) (State, []Effect) {
	switch in := in.(type) {
	case Begin:
		var effects []Effect
		if s.Phase.Live() {
			s, effects = stop(s)
		}
		s.Phase = PhaseAwaitingStart
		s.Session = Session{
			Seq:             in.Seq,
			TargetMessageID: in.TargetMessageID,
			ChatID:          in.ChatID,
			Status:          StatusPending,
		}
		return s, append(effects, ArmTimer{Seq: in.Seq})

	case Delivered:
		if !s.Phase.Live() {
			return s, discard("no live session")
		}
		if in.Seq != s.Session.Seq {
			return s, discard("event for a previous session")
		}
		return reduceEvent(s, in.Event)

	case RequestFailed:
		if !s.Phase.Live() || in.Seq != s.Session.Seq {
			return s, discard("request failure for a previous session")
		}
		return finalize(s, errorText(in.Err), false, StatusErrored)

	case StopRequested:
		if !s.Phase.Live() {
			return s, discard("stop with no live session")
		}
		return stop(s)

	case TimedOut:
		if !s.Phase.Live() || in.Seq != s.Session.Seq {
			return s, discard("timer for a previous session")
		}
		return finalize(s, s.Session.Content, true, StatusDone)
	}
	return s, discard("unknown input")
}

func reduceEvent(s State, ev events.Event) (State, []Effect) {
	sess := s.Session

	if id := requestID(ev); id != "" && id != sess.TargetMessageID {
		return s, discard("event for a different message")
	}

	switch ev := ev.(type) {
	case events.StreamStart:
		if s.Phase != PhaseAwaitingStart {
			return s, discard("stream-start while already streaming")
		}
		s.Phase = PhaseStreaming
		s.Session.StreamID = ev.StreamID
		s.Session.Status = StatusActive
		return s, nil

	case events.Chunk:
		if s.Phase != PhaseStreaming {
			return s, discard("chunk before stream-start")
		}
		if !sameStream(ev.StreamID, sess.StreamID) {
			return s, discard("chunk from a different stream")
		}
		var effects []Effect
		if ev.Text != "" {
			s.Session.Content += ev.Text
			effects = append(effects, ReplaceContent{
				MessageID: sess.TargetMessageID,
				Content:   s.Session.Content,
				Streaming: true,
			})
		}
		if ev.Stats != nil {
			s.Session.Stats = convertStats(ev.Stats)
		}
		if ev.Done {
			s.Phase = PhaseFinalizing
			var fin []Effect
			s, fin = finalize(s, s.Session.Content, true, StatusDone)
			return s, append(effects, fin...)
		}
		return s, effects

	case events.Complete:
		if !sameStream(ev.StreamID, sess.StreamID) {
			return s, discard("complete from a different stream")
		}
		s.Phase = PhaseFinalizing
		return finalize(s, s.Session.Content, true, StatusDone)

	case events.StreamError:
		if !sameStream(ev.StreamID, sess.StreamID) {
			return s, discard("error from a different stream")
		}
		if strings.TrimSpace(s.Session.Content) != "" {
			// keep what arrived
			return finalize(s, s.Session.Content, true, StatusDone)
		}
		s.Phase = PhaseErrored
		return finalize(s, errorText(ev.Message), false, StatusErrored)

	case events.Cancelled:
		if sess.StreamID == "" || ev.StreamID != sess.StreamID {
			return s, discard("cancellation for a different stream")
		}
		// the backend dropped the stream; settle without saving
		s.Phase = PhaseCancelling
		return finalize(s, s.Session.Content, false, StatusCancelled)
	}

	return s, discard("event not handled by the session")
}

// stop runs the local half of the cancel protocol. The backend abort is an
// effect whose outcome never feeds back into the state.
func stop(s State) (State, []Effect) {
	abort := Abort{
		Seq:       s.Session.Seq,
		StreamID:  s.Session.StreamID,
		RequestID: s.Session.TargetMessageID,
	}
	s.Phase = PhaseCancelling
	s, effects := finalize(s, s.Session.Content, true, StatusCancelled)
	return s, append([]Effect{abort}, effects...)
}

// finalize settles the target message exactly once per session.
func finalize(s State, content string, persist bool, status Status) (State, []Effect) {
	sess := &s.Session
	effects := []Effect{
		ReplaceContent{MessageID: sess.TargetMessageID, Content: content, Streaming: false},
	}
	if sess.Stats != nil && status == StatusDone {
		effects = append(effects, AttachStats{MessageID: sess.TargetMessageID, Stats: sess.Stats})
	}
	if persist && !sess.Persisted && sess.ChatID != "" && strings.TrimSpace(content) != "" {
		effects = append(effects, Persist{ChatID: sess.ChatID, Content: content, Stats: sess.Stats})
		sess.Persisted = true
	}
	effects = append(effects, Unsubscribe{Seq: sess.Seq}, StopTimer{})

	sess.Content = content
	sess.Status = status
	s.Phase = PhaseIdle
	return s, effects
}

func discard(reason string) []Effect {
	return []Effect{Discard{Reason: reason}}
}

// sameStream treats an untagged event as belonging to the current stream.
func sameStream(eventID, sessionID string) bool {
	return eventID == "" || sessionID == "" || eventID == sessionID
}

func requestID(ev events.Event) string {
	switch ev := ev.(type) {
	case events.StreamStart:
		return ev.RequestID
	case events.Chunk:
		return ev.RequestID
	case events.Complete:
		return ev.RequestID
	case events.StreamError:
		return ev.RequestID
	case events.Cancelled:
		return ev.RequestID
	}
	return ""
}

func errorText(msg string) string {
	if strings.TrimSpace(msg) == "" {
		msg = defaultErrorText
	}
	return ErrorPrefix + msg
}

func convertStats(st *events.Stats) *model.Stats {
	return &model.Stats{
		PromptTokens:     st.PromptTokens,
		CompletionTokens: st.CompletionTokens,
		TotalDuration:    time.Duration(st.TotalDurationNanos),
		EvalDuration:     time.Duration(st.EvalDurationNanos),
	}
}
