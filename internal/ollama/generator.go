// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigchat/internal/events"
)

// =============================================================================
// GENERATOR
// =============================================================================

// Publisher receives generation events.
type Publisher interface {
	Publish(events.Event)
}

// GenerationRequest starts one streamed reply.
type GenerationRequest struct {
	// RequestID is echoed on every event of the resulting stream.
	RequestID string
	Model     string
	Messages  []Message
	Options   *Options
}

// Generator runs streaming chats in the background and publishes their
// progress as events. Each stream gets a fresh StreamID.
//
// Event order per stream: StreamStart, Chunk*, then exactly one of
// (nothing | StreamError | Cancelled), then Complete.
type Generator struct {
	client *Client
	bus    Publisher
	log    logrus.FieldLogger

	mu     sync.Mutex
	active map[string]activeStream
	wg     sync.WaitGroup
}

type activeStream struct {
	requestID string
	cancel    context.CancelFunc
}

// NewGenerator creates a Generator publishing to bus.
func NewGenerator(client *Client, bus Publisher, log logrus.FieldLogger) *Generator {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Generator{
		client: client,
		bus:    bus,
		log:    log,
		active: make(map[string]activeStream),
	}
}

// StartGeneration opens the stream and returns its StreamID once the server
// has accepted the request. Reading continues on a background goroutine.
// The stream outlives ctx; use AbortRequest or AbortGeneration to stop it.
func (g *Generator) StartGeneration(ctx context.Context, req GenerationRequest) (string, error) {
	streamID := uuid.NewString()
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	g.mu.Lock()
	g.active[streamID] = activeStream{requestID: req.RequestID, cancel: cancel}
	g.mu.Unlock()

	log := g.log.WithFields(logrus.Fields{
		"stream_id":  streamID,
		"request_id": req.RequestID,
		"model":      req.Model,
	})

	// Request setup still honors the caller's cancellation.
	stop := context.AfterFunc(ctx, cancel)
	body, err := g.client.OpenChatStream(streamCtx, req.Model, req.Messages, req.Options)
	stop()
	if err != nil {
		g.release(streamID)
		log.WithError(err).Warn("generation request failed")
		return "", err
	}

	log.Debug("stream started")
	g.bus.Publish(events.StreamStart{StreamID: streamID, RequestID: req.RequestID})

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.release(streamID)
		defer body.Close()
		g.pump(streamCtx, streamID, req.RequestID, body, log)
	}()

	return streamID, nil
}

// pump forwards chunks until done, EOF, error, or abort.
func (g *Generator) pump(ctx context.Context, streamID, requestID string, body io.Reader, log logrus.FieldLogger) {
	reader := NewStreamReader(body)
	completed := false

	for {
		if ctx.Err() != nil {
			break
		}
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.WithError(err).Warn("stream read failed")
			g.bus.Publish(events.StreamError{StreamID: streamID, RequestID: requestID, Message: "Stream error: " + err.Error()})
			g.bus.Publish(events.Complete{StreamID: streamID, RequestID: requestID, Completed: false})
			return
		}

		ev := events.Chunk{StreamID: streamID, RequestID: requestID, Text: chunk.Content, Done: chunk.Done}
		if chunk.Done {
			ev.Stats = &events.Stats{
				PromptTokens:       chunk.PromptTokens,
				CompletionTokens:   chunk.CompletionTokens,
				TotalDurationNanos: int64(chunk.TotalDuration),
				EvalDurationNanos:  int64(chunk.EvalDuration),
			}
		}
		g.bus.Publish(ev)
		if chunk.Done {
			completed = true
			break
		}
	}

	if !completed && errors.Is(ctx.Err(), context.Canceled) {
		log.Debug("stream cancelled")
		g.bus.Publish(events.Cancelled{StreamID: streamID, RequestID: requestID})
	}
	if n := reader.Skipped(); n > 0 {
		log.WithField("skipped", n).Debug("malformed stream lines ignored")
	}
	log.WithField("completed", completed).Debug("stream finished")
	g.bus.Publish(events.Complete{StreamID: streamID, RequestID: requestID, Completed: completed})
}

// AbortGeneration cancels every active stream. It does not wait for them.
func (g *Generator) AbortGeneration(_ context.Context) error {
	g.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(g.active))
	for id, st := range g.active {
		cancels = append(cancels, st.cancel)
		g.log.WithField("stream_id", id).Debug("cancelling stream")
	}
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// AbortRequest cancels the streams opened for requestID and leaves every
// other stream running. It does not wait for them. A stream still being
// set up is cancelled too, so its StartGeneration fails.
func (g *Generator) AbortRequest(_ context.Context, requestID string) error {
	g.mu.Lock()
	var cancels []context.CancelFunc
	for id, st := range g.active {
		if st.requestID != requestID {
			continue
		}
		cancels = append(cancels, st.cancel)
		g.log.WithFields(logrus.Fields{"stream_id": id, "request_id": requestID}).Debug("cancelling stream")
	}
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// Active returns the number of running streams.
func (g *Generator) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// Wait blocks until every stream goroutine has exited or ctx is done.
func (g *Generator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Generator) release(streamID string) {
	g.mu.Lock()
	st, ok := g.active[streamID]
	delete(g.active, streamID)
	g.mu.Unlock()
	if ok {
		st.cancel()
	}
}
