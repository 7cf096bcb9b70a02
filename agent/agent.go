// Package agent holds the summarization profiles, the request builder and
// the registry that discovers and instantiates agents by display name.
package agent

import (
	"context"

	"summarizer-agents/client"
)

// Agent is one summarization behavior. Open sends text with the agent's
// instruction header and returns the live response stream.
type Agent interface {
	Profile() Profile
	Open(ctx context.Context, text string) (client.Stream, error)
}

// Profile describes an agent. It is built once at registration and never
// changed afterwards.
type Profile struct {
	Name        string
	Model       string
	Instruction string
	Endpoint    client.Endpoint
}
