package agent

import (
	"summarizer-agents/client"

	"github.com/charmbracelet/log"
)

const CondensedAgentName = "Condensed"

const condensedInstruction = `You are a summarization assistant specialized in creating concise summaries from long or complex text.
Your task is to significantly reduce the input while preserving only the essential ideas. Act as a professional editor who highlights the core information clearly.

Format Requirements:
- Start the summary with a meaningful Title: on its own line.
- Follow the title with bullet points summarizing the key ideas.
- Do not include any introductions like "Here is a summary..." or commentary.
- Keep tone neutral, informative, and objective.
- Avoid repetition, filler, or non-essential background.

Example:
Original Input:
The company launched a revolutionary new software that uses AI to automate supply chain logistics, reducing delivery times and operational costs by 30%.

Condensed Output:
**AI Supply Chain Software Launch**
- The company launched AI-powered software.
- Automates supply chain logistics.
- Reduces delivery times and operational costs by 30%.`

// CondensedAgent reduces text to a title and a handful of bullet points.
type CondensedAgent struct {
	*BaseAgent
}

func NewCondensedAgent(transport client.Transport, endpoint client.Endpoint, logger *log.Logger) *CondensedAgent {
	profile := Profile{
		Name:        CondensedAgentName,
		Model:       "llama3.2",
		Instruction: condensedInstruction,
		Endpoint:    endpoint,
	}
	return &CondensedAgent{BaseAgent: NewBaseAgent(profile, transport, logger)}
}
