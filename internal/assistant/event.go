package assistant

import (
	"errors"
	"fmt"

	"github.com/MrWong99/gaia/internal/capture"
	"github.com/MrWong99/gaia/pkg/types"
)

// EventType names a change published by the Controller.
type EventType string

const (
	EventSnapshot           EventType = "snapshot"
	EventListening          EventType = "listening"
	EventProcessing         EventType = "processing"
	EventMuted              EventType = "muted"
	EventTranscriptAppended EventType = "transcript.appended"
	EventTranscriptInterim  EventType = "transcript.interim"
	EventCardsAppended      EventType = "cards.appended"
	EventCardDismissed      EventType = "card.dismissed"
	EventError              EventType = "error"
)

// Error codes carried by EventError.
const (
	CodePermissionDenied    = "permission_denied"
	CodeUnsupportedPlatform = "unsupported_platform"
	CodeCaptureFailed       = "capture_failed"
)

// Event is a single state change. Only the fields relevant to Type are set.
type Event struct {
	Type EventType `json:"type"`

	// Flag carries the new value for listening, processing and muted events.
	Flag *bool `json:"value,omitempty"`

	Entry    *types.TranscriptEntry `json:"entry,omitempty"`
	Interim  string                 `json:"text,omitempty"`
	Cards    []Card                 `json:"cards,omitempty"`
	CardID   string                 `json:"id,omitempty"`
	Error    *ErrorInfo             `json:"error,omitempty"`
	Snapshot *Snapshot              `json:"snapshot,omitempty"`
}

// ErrorInfo describes a user-facing failure.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Card is an opportunity card with its presentation hints.
type Card struct {
	types.OpportunityCard
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

func cardViews(cards []types.OpportunityCard) []Card {
	out := make([]Card, len(cards))
	for i, c := range cards {
		out[i] = Card{OpportunityCard: c, Icon: c.Type.Icon(), Color: c.Type.Color()}
	}
	return out
}

// Snapshot is a point-in-time copy of session state.
type Snapshot struct {
	Listening  bool                    `json:"listening"`
	Processing bool                    `json:"processing"`
	Muted      bool                    `json:"muted"`
	Utterances int                     `json:"utterances"`
	Transcript []types.TranscriptEntry `json:"transcript"`
	Cards      []Card                  `json:"cards"`
	StatusLine string                  `json:"status"`
}

// Status renders the one-line session summary shown under the card list.
func (s Snapshot) Status() string {
	if !s.Listening {
		return `Ready to listen • Click "Start Listening" to begin`
	}
	return fmt.Sprintf("Active • %d utterances • %d opportunities detected", s.Utterances, len(s.Cards))
}

func flagEvent(t EventType, v bool) Event {
	return Event{Type: t, Flag: &v}
}

func errorEvent(err error) Event {
	code := CodeCaptureFailed
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		code = CodePermissionDenied
	case errors.Is(err, capture.ErrUnsupportedPlatform):
		code = CodeUnsupportedPlatform
	}
	return Event{Type: EventError, Error: &ErrorInfo{Code: code, Message: err.Error()}}
}
