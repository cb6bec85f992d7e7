// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// maxLineSize caps a single NDJSON line. Fragments are small; this only
// guards against a misbehaving server.
const maxLineSize = 1 << 20

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streaming responses.
type StreamReader struct {
	reader *bufio.Reader
	model  string
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// ReadChunk reads the next non-empty line and parses it. It returns io.EOF
// when the body ends cleanly between lines.
func (s *StreamReader) ReadChunk() (StreamChunk, error) {
	for {
		line, err := s.readLine()
		if err != nil && len(line) == 0 {
			return StreamChunk{}, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return StreamChunk{}, err
			}
			continue
		}

		return s.parse(line)
	}
}

func (s *StreamReader) readLine() ([]byte, error) {
	var buf []byte
	for {
		part, isPrefix, err := s.reader.ReadLine()
		buf = append(buf, part...)
		if len(buf) > maxLineSize {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "stream line too long"}
		}
		if err != nil || !isPrefix {
			return buf, err
		}
	}
}

func (s *StreamReader) parse(line []byte) (StreamChunk, error) {
	var response ChatResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return StreamChunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "malformed stream line", Cause: err}
	}

	if response.Error != "" {
		return StreamChunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: response.Error}
	}

	// Track the model
	if response.Model != "" {
		s.model = response.Model
	}

	chunk := StreamChunk{
		Content:    response.Message.Content,
		Done:       response.Done,
		DoneReason: response.DoneReason,
		Model:      s.model,
	}

	// On completion, extract statistics
	if response.Done {
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.LoadDuration = time.Duration(response.LoadDuration)
		chunk.PromptEvalDuration = time.Duration(response.PromptEvalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}

	return chunk, nil
}

// =============================================================================
// CHAT STREAM
// =============================================================================

// ChatStream is a pull-based view of one /api/chat response.
//
// Next returns chunks in arrival order. After the chunk with Done set it
// returns io.EOF. A body that ends before the done chunk is an error, as
// is a malformed or in-band error line.
type ChatStream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *StreamReader
	final  *StreamChunk
	err    error
}

func newChatStream(ctx context.Context, body io.ReadCloser) *ChatStream {
	return &ChatStream{
		ctx:    ctx,
		body:   body,
		reader: NewStreamReader(body),
	}
}

// Next returns the next chunk. Errors are sticky.
func (s *ChatStream) Next() (StreamChunk, error) {
	if s.err != nil {
		return StreamChunk{}, s.err
	}
	if s.final != nil {
		s.err = io.EOF
		return StreamChunk{}, io.EOF
	}

	chunk, err := s.reader.ReadChunk()
	if err != nil {
		s.err = s.classify(err)
		return StreamChunk{}, s.err
	}

	if chunk.Done {
		s.final = &chunk
	}
	return chunk, nil
}

// Final returns the done chunk with server timings, or nil if the stream
// has not completed.
func (s *ChatStream) Final() *StreamChunk {
	return s.final
}

// Close releases the response body. It is safe to call more than once.
func (s *ChatStream) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	if s.err == nil {
		s.err = io.EOF
	}
	return err
}

func (s *ChatStream) classify(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &ClientError{Type: ErrTypeTimeout, Message: "stream timed out", Cause: ctxErr}
		}
		return &ClientError{Type: ErrTypeConnection, Message: "stream cancelled", Cause: ctxErr}
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before completion", Cause: io.ErrUnexpectedEOF}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
}
