// Package chat builds assistant replies incrementally from a provider
// event stream. A Session is created by its caller and holds the
// conversation for the UI session's lifetime; there is no shared global
// chat state.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"devpulse/gemini"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Session-scoped, never persisted.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FrameStream yields raw provider stream frames until io.EOF.
type FrameStream interface {
	Next() ([]byte, error)
	Close() error
}

// Streamer opens a streaming generation request.
type Streamer interface {
	Stream(ctx context.Context, model string, req *gemini.Request) (FrameStream, error)
}

// Session accumulates one conversation and streams replies.
type Session struct {
	streamer Streamer
	model    string
	opts     gemini.GenerateOptions

	mu       sync.Mutex
	history  []gemini.Content
	messages []Message
}

// Option configures a Session.
type Option func(*Session)

// WithOptions sets provider features for every turn.
func WithOptions(opts gemini.GenerateOptions) Option {
	return func(s *Session) {
		s.opts = opts
	}
}

// NewSession creates an empty chat session.
func NewSession(streamer Streamer, model string, opts ...Option) *Session {
	s := &Session{
		streamer: streamer,
		model:    model,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send streams the assistant's reply to text. Each raw provider frame is
// handed to onFrame before parsing, and onUpdate receives the cumulative
// reply text after every chunk; either callback may be nil. A malformed
// chunk is skipped, and end of stream finalizes the reply as-is.
func (s *Session) Send(ctx context.Context, text string, onFrame func([]byte), onUpdate func(string)) (*Message, error) {
	s.mu.Lock()
	s.history = append(s.history, gemini.Content{
		Role:  "user",
		Parts: []gemini.Part{{Text: text}},
	})
	s.messages = append(s.messages, Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: text,
	})
	req := gemini.NewChatRequest(s.history, s.opts)
	s.mu.Unlock()

	stream, err := s.streamer.Stream(ctx, s.model, req)
	if err != nil {
		return nil, fmt.Errorf("open chat stream: %w", err)
	}
	defer stream.Close()

	var buffer string
	for {
		frame, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Finalize what arrived; the stream has no terminal sentinel
			// and a cut connection is indistinguishable from a clean end.
			slog.Warn("chat stream interrupted", "error", err)
			break
		}

		if onFrame != nil {
			onFrame(frame)
		}

		var chunk gemini.Response
		if err := json.Unmarshal(frame, &chunk); err != nil {
			slog.Warn("skipping malformed stream chunk", "error", err)
			continue
		}

		buffer += chunk.Text()
		if onUpdate != nil {
			onUpdate(buffer)
		}
	}

	reply := Message{
		ID:      uuid.NewString(),
		Role:    RoleAssistant,
		Content: buffer,
	}

	s.mu.Lock()
	s.history = append(s.history, gemini.Content{
		Role:  "model",
		Parts: []gemini.Part{{Text: buffer}},
	})
	s.messages = append(s.messages, reply)
	s.mu.Unlock()

	return &reply, nil
}
