package agent

import (
	"context"
	"fmt"
	"time"

	"summarizer-agents/client"

	"github.com/charmbracelet/log"
)

// BaseAgent provides the request path shared by every agent.
type BaseAgent struct {
	profile   Profile
	transport client.Transport
	logger    *log.Logger
}

// NewBaseAgent creates a new BaseAgent sending requests for profile through
// transport.
func NewBaseAgent(profile Profile, transport client.Transport, logger *log.Logger) *BaseAgent {
	if logger == nil {
		logger = log.Default()
	}
	return &BaseAgent{
		profile:   profile,
		transport: transport,
		logger:    logger.WithPrefix(profile.Name),
	}
}

func (a *BaseAgent) Profile() Profile {
	return a.profile
}

// Open normalizes text, builds the chat request and opens the stream.
func (a *BaseAgent) Open(ctx context.Context, text string) (client.Stream, error) {
	startTime := time.Now()
	req := BuildRequest(a.profile, text)

	stream, err := a.transport.Open(ctx, a.profile.Endpoint, req)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", a.profile.Name, err)
	}

	a.logger.Debug("Summary stream opened",
		"model", a.profile.Model,
		"chars", len(req.Messages[1].Content),
		"duration", time.Since(startTime),
	)
	return stream, nil
}
