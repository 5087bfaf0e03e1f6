package proto

import (
	"encoding/json"
	"fmt"
	"time"
)

// ServerEvent is the decoded form of a Push. Exactly one variant exists per
// push name; the transport decodes once and the session switches on the
// concrete type, so pushes are never re-parsed downstream.
type ServerEvent interface {
	PushName() string
}

// Registered confirms identity bootstrap and reports the server-side
// entitlement snapshot.
type Registered struct {
	ClientID              string     `json:"clientId"`
	Points                int        `json:"points"`
	PreferenceActiveUntil *time.Time `json:"preferenceActiveUntil"`
}

// EnqueuedToWaiting confirms the client entered the matching queue.
type EnqueuedToWaiting struct{}

// Matched reports a partner assignment.
type Matched struct {
	PartnerGender string  `json:"partnerGender"`
	Distance      float64 `json:"distance"`
}

// MatchEnded reports that the partner ended the chat.
type MatchEnded struct{}

// ReceiveMessage is the server broadcast of a chat message, including the
// client's own messages echoed back in delivery order.
type ReceiveMessage struct {
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ReceiveImageMessage is the server broadcast of an uploaded image.
type ReceiveImageMessage struct {
	SenderID     string    `json:"senderId"`
	ImageID      string    `json:"imageId"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	ImageURL     string    `json:"imageUrl"`
	Timestamp    time.Time `json:"timestamp"`
}

// PreferencesUpdated confirms the server persisted a preference change.
type PreferencesUpdated struct{}

// PointsUpdated reports a server-side balance change, optionally with a new
// preference window expiry.
type PointsUpdated struct {
	Points                int        `json:"points"`
	PreferenceActiveUntil *time.Time `json:"preferenceActiveUntil,omitempty"`
}

func (Registered) PushName() string          { return PushRegistered }
func (EnqueuedToWaiting) PushName() string   { return PushEnqueuedToWaiting }
func (Matched) PushName() string             { return PushMatched }
func (MatchEnded) PushName() string          { return PushMatchEnded }
func (ReceiveMessage) PushName() string      { return PushReceiveMessage }
func (ReceiveImageMessage) PushName() string { return PushReceiveImageMessage }
func (PreferencesUpdated) PushName() string  { return PushPreferencesUpdated }
func (PointsUpdated) PushName() string       { return PushPointsUpdated }

// DecodePush maps a push envelope to its typed event.
func DecodePush(p Push) (ServerEvent, error) {
	switch p.Event {
	case PushRegistered:
		return decodeInto[Registered](p)
	case PushEnqueuedToWaiting:
		return EnqueuedToWaiting{}, nil
	case PushMatched:
		return decodeInto[Matched](p)
	case PushMatchEnded:
		return MatchEnded{}, nil
	case PushReceiveMessage:
		return decodeInto[ReceiveMessage](p)
	case PushReceiveImageMessage:
		return decodeInto[ReceiveImageMessage](p)
	case PushPreferencesUpdated:
		return PreferencesUpdated{}, nil
	case PushPointsUpdated:
		return decodeInto[PointsUpdated](p)
	default:
		return nil, fmt.Errorf("unknown push %q", p.Event)
	}
}

func decodeInto[T ServerEvent](p Push) (ServerEvent, error) {
	var ev T
	if len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s push: %w", p.Event, err)
		}
	}
	return ev, nil
}
