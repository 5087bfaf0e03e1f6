package core

// commandKind describes what the caller wants the session to do. Commands
// are the only way state is mutated from outside the Run goroutine.
type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdJoinQueue
	cmdSendMessage
	cmdEndChat
	cmdSavePreferences
	cmdActivatePreference
	cmdUpdateLocation
	cmdUpdateGender
	cmdSystemNotice
	cmdSnapshot
)

type command struct {
	kind commandKind

	text            string
	preferredGender string
	maxDistanceKm   int
	latitude        float64
	longitude       float64
	gender          string

	reply chan Snapshot
}

// Snapshot is a consistent copy of session state, taken on the Run goroutine.
type Snapshot struct {
	Connection      ConnectionState
	Match           MatchState
	ClientID        string
	PartnerGender   string
	PartnerDistance float64
	PreferredGender string
	MaxDistanceKm   int
	Entitlement     Entitlement
	Messages        []ChatMessage
}
