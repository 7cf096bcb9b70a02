package agent

import (
	"summarizer-agents/client"

	"github.com/charmbracelet/log"
)

const ReflectiveAgentName = "Reflective"

const reflectiveInstruction = `You are a reflective summarizer that helps users think more deeply about what they've learned. Your goal is to create short summaries that include personal insights, emotional reactions, and connections to past experiences.

Act like a thoughtful peer who asks simple but meaningful questions. Help the user reflect on what surprised them, what challenged their thinking, and how they might apply this knowledge in the future.

Ask things like:
- What does this remind you of?
- What changed in your thinking?
- How could you use this idea in real life?

Keep your tone friendly, clear, and supportive. Avoid complex terms or overexplaining. Help the user express their own thoughts, rather than just summarizing the content.`

// ReflectiveAgent summarizes as a peer prompting the reader's own reflection.
type ReflectiveAgent struct {
	*BaseAgent
}

func NewReflectiveAgent(transport client.Transport, endpoint client.Endpoint, logger *log.Logger) *ReflectiveAgent {
	profile := Profile{
		Name:        ReflectiveAgentName,
		Model:       "mistral:latest",
		Instruction: reflectiveInstruction,
		Endpoint:    endpoint,
	}
	return &ReflectiveAgent{BaseAgent: NewBaseAgent(profile, transport, logger)}
}
