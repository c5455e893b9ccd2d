package analyzer

import (
	"fmt"

	"github.com/lueurxax/idea-aggregator/internal/core/domain"
)

const promptTemplate = `Analyze the following business or product idea.

Title: %s
Description: %s
Source: %s

Respond ONLY with a JSON object with these fields:
{
  "score": <integer 0-100 based on originality, feasibility and market potential>,
  "tags": [<at most 3 short tags or categories describing the idea>],
  "summary": "<concise summary in 1-2 sentences>",
  "difficulty": "<one of: low, medium, high>",
  "market_potential": "<one of: niche, moderate, large>",
  "insight": "<short analysis of the business potential with suggestions>"
}
`

// BuildPrompt renders the analysis prompt for one idea.
func BuildPrompt(idea domain.Idea) string {
	return fmt.Sprintf(promptTemplate, idea.Title, idea.Description, idea.Source)
}
