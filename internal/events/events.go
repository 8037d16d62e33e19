// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events defines the generation event variants and the in-process
// bus that carries them from the backend to subscribers.
package events

// =============================================================================
// EVENT VARIANTS
// =============================================================================

// Kind names an event variant.
type Kind string

const (
	KindStreamStart  Kind = "stream-start"
	KindChunk        Kind = "chunk"
	KindComplete     Kind = "complete"
	KindError        Kind = "error"
	KindCancelled    Kind = "cancelled"
	KindChatsChanged Kind = "chats-changed"
)

// Event is the closed set of bus events. Only types in this package implement it.
type Event interface {
	Kind() Kind
	event()
}

// Stats carries the counters reported on the final chunk of a stream.
type Stats struct {
	PromptTokens       int
	CompletionTokens   int
	TotalDurationNanos int64
	EvalDurationNanos  int64
}

// StreamStart announces the backend-assigned stream identity.
// RequestID echoes the correlation key passed with the generation request
// and is repeated on every later event of the stream.
type StreamStart struct {
	StreamID  string
	RequestID string
}

// Chunk carries an incremental piece of generated text.
// StreamID and RequestID may be empty when the backend does not tag chunks.
type Chunk struct {
	StreamID  string
	RequestID string
	Text      string
	Done      bool
	Stats     *Stats
}

// Complete marks the end of a stream. Completed is false when the stream was
// aborted or failed.
type Complete struct {
	StreamID  string
	RequestID string
	Completed bool
}

// StreamError reports a failure while reading a stream.
type StreamError struct {
	StreamID  string
	RequestID string
	Message   string
}

// Cancelled reports that a stream was aborted by request.
type Cancelled struct {
	StreamID  string
	RequestID string
}

// ChatsChanged is broadcast after a persistence write so chat lists can refresh.
type ChatsChanged struct {
	ChatID string
}

func (StreamStart) Kind() Kind  { return KindStreamStart }
func (Chunk) Kind() Kind        { return KindChunk }
func (Complete) Kind() Kind     { return KindComplete }
func (StreamError) Kind() Kind  { return KindError }
func (Cancelled) Kind() Kind    { return KindCancelled }
func (ChatsChanged) Kind() Kind { return KindChatsChanged }

func (StreamStart) event()  {}
func (Chunk) event()        {}
func (Complete) event()     {}
func (StreamError) event()  {}
func (Cancelled) event()    {}
func (ChatsChanged) event() {}

// StreamKinds lists the variants emitted by a generation stream.
var StreamKinds = []Kind{KindStreamStart, KindChunk, KindComplete, KindError, KindCancelled}
