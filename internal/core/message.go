package core

import "time"

// Origin identifies who produced a chat message.
type Origin int

const (
	OriginSelf Origin = iota
	OriginPeer
	OriginSystem
)

func (o Origin) String() string {
	switch o {
	case OriginSelf:
		return "self"
	case OriginPeer:
		return "peer"
	case OriginSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ChatMessage is one entry in the current conversation. Messages are
// immutable after creation and the whole history is cleared when a new
// match begins.
type ChatMessage struct {
	Origin       Origin
	Content      string
	Timestamp    time.Time
	ThumbnailURL string
	ImageURL     string
}

// IsImage reports whether the message carries an image attachment.
func (m ChatMessage) IsImage() bool {
	return m.ImageURL != ""
}

// Transcript is a finished match conversation handed to the archive before
// history is cleared.
type Transcript struct {
	PartnerGender string
	DistanceKm    float64
	StartedAt     time.Time
	EndedAt       time.Time
	Messages      []ChatMessage
}
