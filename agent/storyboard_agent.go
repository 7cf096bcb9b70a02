package agent

import (
	"summarizer-agents/client"

	"github.com/charmbracelet/log"
)

const StoryBoardAgentName = "Story Board"

type StoryBoardAgent struct {
	*BaseAgent
}

func NewStoryBoardAgent(transport client.Transport, endpoint client.Endpoint, logger *log.Logger) *StoryBoardAgent {
	profile := Profile{
		Name:        StoryBoardAgentName,
		Model:       "llama3.2",
		Instruction: "Develop a comprehensive storyboard for a complex narrative, incorporating visual elements to boost comprehension and recall.",
		Endpoint:    endpoint,
	}
	return &StoryBoardAgent{BaseAgent: NewBaseAgent(profile, transport, logger)}
}
