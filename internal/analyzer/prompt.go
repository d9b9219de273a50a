package analyzer

import (
	"strings"

	"github.com/MrWong99/gaia/pkg/provider/llm"
	"github.com/MrWong99/gaia/pkg/types"
)

const promptTemplate = `Analyze this conversation transcript and identify opportunities for assistance.
Look for these specific types:

1. QUESTION/UNKNOWN: When speakers express ignorance or ask questions they don't know the answer to
   - Examples: "I wonder if...", "Do you know...", "Is there a way to..."

2. MEMORY RETRIEVAL: When speakers try to recall something specific but can't fully remember
   - Examples: "I saw this article...", "There was this study...", "I read somewhere..."

3. GENERATIVE MOMENT: When speakers engage in "what if" scenarios or imagine something that doesn't exist
   - Examples: "What if we could...", "Imagine if...", "Picture this..."

For each opportunity found:
- Generate helpful content (search results, explanations, or creative descriptions)
- Explain why this card appeared based on what was said
- Make it contextually relevant and unobtrusive

Use type "question" for QUESTION/UNKNOWN, "memory" for MEMORY RETRIEVAL and
"generative" for GENERATIVE MOMENT.

Transcript: "{{transcript}}"

Only return opportunities that are clearly identifiable and would genuinely help the conversation.
If no clear opportunities exist, return an empty array.`

// buildPrompt embeds transcript into the detection prompt.
func buildPrompt(transcript string) string {
	return strings.Replace(promptTemplate, "{{transcript}}", transcript, 1)
}

// responseSchema is the structured-output contract for a detection call.
// Every property is required and additional properties are forbidden so the
// schema is accepted by strict-mode backends.
func responseSchema() *llm.JSONSchema {
	enum := make([]any, len(types.OpportunityTypes))
	for i, t := range types.OpportunityTypes {
		enum[i] = string(t)
	}
	str := func() map[string]any { return map[string]any{"type": "string"} }

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":          str(),
			"type":        map[string]any{"type": "string", "enum": enum},
			"trigger":     str(),
			"content":     str(),
			"explanation": str(),
			"timestamp":   map[string]any{"type": "number"},
		},
		"required":             []any{"id", "type", "trigger", "content", "explanation", "timestamp"},
		"additionalProperties": false,
	}

	return &llm.JSONSchema{
		Name:        "opportunities",
		Description: "Conversation moments where a suggestion card would help.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"opportunities": map[string]any{"type": "array", "items": item},
			},
			"required":             []any{"opportunities"},
			"additionalProperties": false,
		},
	}
}
