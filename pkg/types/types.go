// Package types defines the shared types used across all Gaia packages.
//
// These types are the common vocabulary between the recognizer providers, the
// analyzer, the session stores and the web surface. Each package keeps its own
// domain types, but data that crosses package boundaries lives here to avoid
// circular imports.
package types

import "time"

// Transcript is a speech-to-text result emitted by a recognizer session.
// Both interim and final results use this type.
type Transcript struct {
	// Text is the recognized speech.
	Text string

	// IsFinal reports whether the recognizer has committed to this result.
	// Interim results may still change and are never written to the log.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// recognizer does not report it.
	Confidence float64

	// Timestamp is the offset of the utterance from the start of the
	// recognition session.
	Timestamp time.Duration
}

// TranscriptEntry is one finalized utterance in the session transcript.
// Entries are immutable once appended.
type TranscriptEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Speaker   string `json:"speaker,omitempty"`
}

// OpportunityType classifies a suggestion card.
type OpportunityType string

const (
	// OpportunityQuestion marks an unanswered question or open unknown.
	OpportunityQuestion OpportunityType = "question"

	// OpportunityMemory marks a half-remembered fact, article or study.
	OpportunityMemory OpportunityType = "memory"

	// OpportunityGenerative marks a hypothetical or "what if" prompt.
	OpportunityGenerative OpportunityType = "generative"
)

// OpportunityTypes lists every valid OpportunityType in display order.
var OpportunityTypes = []OpportunityType{OpportunityQuestion, OpportunityMemory, OpportunityGenerative}

// IsValid reports whether t is one of the known opportunity types.
func (t OpportunityType) IsValid() bool {
	switch t {
	case OpportunityQuestion, OpportunityMemory, OpportunityGenerative:
		return true
	}
	return false
}

// Icon returns the presentation icon name for cards of this type.
func (t OpportunityType) Icon() string {
	switch t {
	case OpportunityMemory:
		return "search"
	case OpportunityGenerative:
		return "image"
	default:
		return "help"
	}
}

// Color returns the presentation accent colour for cards of this type.
func (t OpportunityType) Color() string {
	switch t {
	case OpportunityQuestion:
		return "blue"
	case OpportunityMemory:
		return "green"
	case OpportunityGenerative:
		return "purple"
	default:
		return "gray"
	}
}

// OpportunityCard is a single suggestion produced by the analyzer.
//
// Timestamp is always assigned by the receiving side in epoch milliseconds;
// whatever the generator put there is overwritten.
type OpportunityCard struct {
	ID          string          `json:"id"`
	Type        OpportunityType `json:"type"`
	Trigger     string          `json:"trigger"`
	Content     string          `json:"content"`
	Explanation string          `json:"explanation"`
	Timestamp   int64           `json:"timestamp"`
}

// SearchResult is one entry returned by a search collaborator.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// GeneratedImage is the result of an image-generation collaborator.
type GeneratedImage struct {
	URL         string `json:"imageUrl"`
	Description string `json:"description"`
}

// Message is a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsStructuredOutput indicates the backend can enforce a JSON schema
	// on the response natively. When false, callers fall back to prompting for
	// JSON and validating the result themselves.
	SupportsStructuredOutput bool
}

// NowMillis returns t as Unix epoch milliseconds.
func NowMillis(t time.Time) int64 { return t.UnixMilli() }
