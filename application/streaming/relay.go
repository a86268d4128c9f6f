// Package streaming bridges an upstream chunked model response to a
// framed, flushed event stream for a client.
package streaming

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// State is the relay's position in its lifecycle.
type State int

const (
	StateStarting State = iota
	StateStreaming
	StateEnded
	StateAborted
)

// scanner buffer sizing; a single model chunk can carry a large content
// delta.
const (
	initialBufSize = 64 * 1024
	maxChunkSize   = 1024 * 1024
)

// FrameWriter delivers one frame to the client. Implementations must flush
// after each frame so deltas arrive unbatched; a returned error means the
// client is gone and the relay stops.
type FrameWriter interface {
	WriteFrame(frame any) error
}

// StartFrame opens the stream with the message identity.
type StartFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Model     string `json:"model"`
	CreatedAt int64  `json:"created_at"`
}

// ContentChunkFrame carries one content delta, in upstream arrival order.
type ContentChunkFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// EndFrame terminates the stream with the accumulated text and whatever
// usage counters the upstream reported.
type EndFrame struct {
	Type          string `json:"type"`
	Done          bool   `json:"done"`
	FullContent   string `json:"full_content"`
	TotalDuration int64  `json:"total_duration,omitempty"`
	EvalCount     int64  `json:"eval_count,omitempty"`
}

// ErrorFrame terminates the stream after an upstream failure.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Done  bool   `json:"done"`
}

// chunk is one newline-delimited JSON object from the model server.
type chunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done          bool  `json:"done"`
	TotalDuration int64 `json:"total_duration"`
	EvalCount     int64 `json:"eval_count"`
}

// Relay drives one streaming session: Starting -> Streaming -> Ended, with
// Aborted reachable from either live state. A Relay is single-use.
type Relay struct {
	model  string
	logger *zap.Logger
	state  State
	full   strings.Builder
}

// NewRelay creates a relay for a single streaming session.
func NewRelay(model string, logger *zap.Logger) *Relay {
	return &Relay{
		model:  model,
		logger: logger,
		state:  StateStarting,
	}
}

// State returns the relay's current lifecycle state.
func (r *Relay) State() State {
	return r.state
}

// FullContent returns the text accumulated so far.
func (r *Relay) FullContent() string {
	return r.full.String()
}

// Run consumes the upstream body and forwards frames until the upstream
// finishes, fails, or the client disconnects. Frames go out in the exact
// order chunks arrive; nothing is batched or reordered.
//
// A chunk that fails to parse is logged and dropped; the stream continues.
// A write error from the FrameWriter means the client disconnected: the
// relay stops without attempting further frames, and the caller's context
// cancellation tears down the upstream request.
func (r *Relay) Run(ctx context.Context, upstream io.Reader, w FrameWriter) error {
	now := time.Now()
	start := StartFrame{
		Type:      "start",
		ID:        fmt.Sprintf("msg_%d", now.UnixMilli()),
		Model:     r.model,
		CreatedAt: now.UnixMilli(),
	}
	if err := w.WriteFrame(start); err != nil {
		r.state = StateAborted
		return err
	}
	r.state = StateStreaming

	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, initialBufSize), maxChunkSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			r.state = StateAborted
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var c chunk
		if err := json.Unmarshal(line, &c); err != nil {
			r.logger.Error("dropping malformed upstream chunk",
				zap.Error(err),
				zap.Int("size", len(line)),
			)
			continue
		}

		if c.Message.Content != "" {
			r.full.WriteString(c.Message.Content)
			frame := ContentChunkFrame{Type: "content_chunk", Content: c.Message.Content}
			if err := w.WriteFrame(frame); err != nil {
				r.state = StateAborted
				return err
			}
		}

		if c.Done {
			end := EndFrame{
				Type:          "end",
				Done:          true,
				FullContent:   r.full.String(),
				TotalDuration: c.TotalDuration,
				EvalCount:     c.EvalCount,
			}
			if err := w.WriteFrame(end); err != nil {
				r.state = StateAborted
				return err
			}
			r.state = StateEnded
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		r.logger.Error("upstream stream error", zap.Error(err))
		r.state = StateAborted
		// Best effort: the client may already be gone.
		_ = w.WriteFrame(ErrorFrame{Type: "error", Error: "Stream error occurred", Done: true})
		return err
	}

	// Upstream ended without an explicit done chunk; close out with
	// whatever accumulated.
	end := EndFrame{Type: "end", Done: true, FullContent: r.full.String()}
	if err := w.WriteFrame(end); err != nil {
		r.state = StateAborted
		return err
	}
	r.state = StateEnded
	return nil
}
