package proto

import (
	"encoding/json"
	"time"
)

// Invocation is the client→server envelope for hub method calls.
type Invocation struct {
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Push is the server→client envelope for unsolicited events.
type Push struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub method names the client may invoke.
const (
	TargetRegister           = "Register"
	TargetJoinWaitingQueue   = "JoinWaitingQueue"
	TargetUpdatePreferences  = "UpdatePreferences"
	TargetUpdateLocation     = "UpdateLocation"
	TargetUpdateGender       = "UpdateGender"
	TargetSendMessage        = "SendMessage"
	TargetEndChat            = "EndChat"
	TargetActivatePreference = "ActivatePreference"
)

// Push names the server may deliver.
const (
	PushRegistered          = "Registered"
	PushEnqueuedToWaiting   = "EnqueuedToWaiting"
	PushMatched             = "Matched"
	PushMatchEnded          = "MatchEnded"
	PushReceiveMessage      = "ReceiveMessage"
	PushReceiveImageMessage = "ReceiveImageMessage"
	PushPreferencesUpdated  = "PreferencesUpdated"
	PushPointsUpdated       = "PointsUpdated"
)

// RegisterArgs bootstraps or resumes an identity. ClientID is empty on the
// very first registration; the server assigns one in the Registered push.
type RegisterArgs struct {
	ClientID              string     `json:"clientId,omitempty"`
	Latitude              float64    `json:"latitude"`
	Longitude             float64    `json:"longitude"`
	Gender                string     `json:"gender"`
	PreferredGender       string     `json:"preferredGender"`
	MaxDistance           int        `json:"maxDistance"`
	Points                int        `json:"points"`
	PreferenceActiveUntil *time.Time `json:"preferenceActiveUntil,omitempty"`
}

// JoinQueueArgs enters the matching queue.
type JoinQueueArgs struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Gender          string  `json:"gender"`
	PreferredGender string  `json:"preferredGender"`
	MaxDistance     int     `json:"maxDistance"`
}

// PreferencesArgs carries a matching preference, for both UpdatePreferences
// and ActivatePreference.
type PreferencesArgs struct {
	PreferredGender string `json:"preferredGender"`
	MaxDistance     int    `json:"maxDistance"`
}

// LocationArgs refreshes the client position.
type LocationArgs struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GenderArgs changes the client's own gender.
type GenderArgs struct {
	Gender string `json:"gender"`
}

// SendMessageArgs delivers chat text to the current partner.
type SendMessageArgs struct {
	Text string `json:"text"`
}

// NewInvocation marshals args into an invocation envelope.
func NewInvocation(target string, args any) (Invocation, error) {
	inv := Invocation{Target: target}
	if args == nil {
		return inv, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return inv, err
	}
	inv.Data = data
	return inv, nil
}
