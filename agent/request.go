package agent

import (
	"strings"

	"summarizer-agents/client"
)

// Normalize collapses every run of Unicode whitespace, line breaks and
// no-break spaces included, into a single space and trims the ends. Input
// formatting is not preserved.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// BuildMessages returns the instruction header followed by the user text.
func BuildMessages(profile Profile, normalized string) []client.Message {
	return []client.Message{
		{Role: "system", Content: profile.Instruction},
		{Role: "user", Content: normalized},
	}
}

// BuildRequest assembles a deterministic streaming request for text.
func BuildRequest(profile Profile, text string) client.ChatRequest {
	return client.ChatRequest{
		Model:    profile.Model,
		Options:  client.Options{Temperature: 0},
		Stream:   true,
		Messages: BuildMessages(profile, Normalize(text)),
	}
}
