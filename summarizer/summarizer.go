// Package summarizer dispatches text to a named agent and turns the
// response into display text or a live sequence of segments.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"summarizer-agents/agent"
	"summarizer-agents/segment"

	"github.com/charmbracelet/log"
)

// Messages returned by Summarize in place of a summary.
const (
	NoTextMessage        = "No text provided to summarize."
	ConnectFailedMessage = "Failed to get response from the API."

	// CouldNotConnectText is the single segment a stream yields when the
	// generation service cannot be reached.
	CouldNotConnectText = "[ERROR] Could not connect"
)

// NotFoundMessage is returned by Summarize for an unknown agent name.
func NotFoundMessage(name string) string {
	return fmt.Sprintf("Agent %s not found", name)
}

var (
	ErrNoText        = errors.New("no text provided")
	ErrNoAgent       = errors.New("no agent selected")
	ErrAgentNotFound = errors.New("agent not found")
)

// Catalog looks agents up by display name.
type Catalog interface {
	Resolve(name string) (agent.Agent, bool)
	List() []string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTimeout bounds each request, stream reading included. Zero means no
// bound beyond the caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

func WithTokenCounter(tc *TokenCounter) Option {
	return func(s *Service) {
		s.tokens = tc
	}
}

// Service is the single entry point for summarization requests.
type Service struct {
	agents  Catalog
	logger  *log.Logger
	timeout time.Duration
	tokens  *TokenCounter
}

// New creates a Service resolving agents from agents.
func New(agents Catalog, opts ...Option) *Service {
	s := &Service{
		agents: agents,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Agents lists the available agent names in discovery order.
func (s *Service) Agents() []string {
	return s.agents.List()
}

// CountTokens estimates the token cost of text, or 0 without a counter.
func (s *Service) CountTokens(text string) int {
	return s.tokens.Count(text)
}

func (s *Service) resolve(name, text string) (agent.Agent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	if name == "" {
		return nil, ErrNoAgent
	}
	a, ok := s.agents.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

// Validate reports the error Stream would return for name and text, without
// contacting the generation service.
func (s *Service) Validate(name, text string) error {
	_, err := s.resolve(name, text)
	return err
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// Summarize runs the whole request and returns the joined summary. Empty
// text, an unknown agent and an unreachable service produce fixed messages
// rather than errors. Errors inside the stream appear as inline markers.
func (s *Service) Summarize(ctx context.Context, name, text string) string {
	a, err := s.resolve(name, text)
	switch {
	case errors.Is(err, ErrNoText):
		return NoTextMessage
	case err != nil:
		return NotFoundMessage(name)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	startTime := time.Now()
	stream, err := a.Open(ctx, text)
	if err != nil {
		s.logger.Error("Failed to open summary stream", "agent", name, "error", err)
		return ConnectFailedMessage
	}
	defer stream.Close()

	summary := segment.Join(segment.Segments(stream.Fragments()))
	s.logger.Info("Summary complete",
		"agent", name,
		"chars", len(summary),
		"duration", time.Since(startTime),
	)
	return summary
}

// Stream validates the request and returns its segments as a lazy,
// single-pass sequence. Validation errors are returned before any network
// activity. The request is sent when iteration starts; if it cannot be sent
// the sequence yields one error segment reading CouldNotConnectText.
// Stopping iteration early releases the connection.
func (s *Service) Stream(ctx context.Context, name, text string) (iter.Seq[segment.Segment], error) {
	a, err := s.resolve(name, text)
	if err != nil {
		return nil, err
	}

	var started atomic.Bool
	return func(yield func(segment.Segment) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}

		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		stream, err := a.Open(ctx, text)
		if err != nil {
			s.logger.Error("Failed to open summary stream", "agent", name, "error", err)
			yield(segment.Segment{Text: CouldNotConnectText, Err: err})
			return
		}
		defer stream.Close()

		count := 0
		for seg := range segment.Segments(stream.Fragments()) {
			count++
			if !yield(seg) {
				s.logger.Debug("Summary stream abandoned", "agent", name, "segments", count)
				return
			}
		}
		s.logger.Debug("Summary stream finished", "agent", name, "segments", count)
	}, nil
}
