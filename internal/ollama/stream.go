// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 4 * 1024 * 1024

// =============================================================================
// LINE SPLITTING
// =============================================================================

// splitLines is a bufio.SplitFunc that treats both '\n' and '\r' as line
// terminators and yields any unterminated remainder at EOF.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// newLineScanner returns a scanner over NDJSON lines.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	sc.Split(splitLines)
	return sc
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of /api/chat streaming responses.
// Blank and malformed lines are skipped.
type StreamReader struct {
	scanner *bufio.Scanner
	model   string
	skipped int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{scanner: newLineScanner(r)}
}

// Next returns the next parsed chunk, or io.EOF when the input is exhausted.
func (s *StreamReader) Next() (*StreamChunk, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		chunk, ok, err := s.parse(line)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.skipped++
			continue
		}
		return chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Process reads the stream and calls the callback for each chunk.
// Returns nil after the done chunk or at EOF.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
}

// Skipped returns the number of malformed lines ignored so far.
func (s *StreamReader) Skipped() int {
	return s.skipped
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}

func (s *StreamReader) parse(line []byte) (*StreamChunk, bool, error) {
	var response struct {
		ChatResponse
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, false, nil
	}
	if response.Error != "" {
		return nil, false, &ClientError{Type: ErrTypeInvalidResponse, Message: response.Error}
	}

	if response.Model != "" {
		s.model = response.Model
	}

	chunk := &StreamChunk{
		Content:    response.Message.Content,
		Done:       response.Done,
		DoneReason: response.DoneReason,
		Model:      s.model,
	}

	if response.Done {
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.LoadDuration = time.Duration(response.LoadDuration)
		chunk.PromptEvalDuration = time.Duration(response.PromptEvalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}

	return chunk, true, nil
}
