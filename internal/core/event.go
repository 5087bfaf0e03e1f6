package core

// EventKind tags an observable session event.
type EventKind int

const (
	// EventStateChanged reports a connection or match state transition.
	EventStateChanged EventKind = iota
	// EventMessageAppended delivers a new chat or system message.
	EventMessageAppended
	// EventHistoryCleared signals the conversation was reset for a new match.
	EventHistoryCleared
	// EventEntitlementUpdated reports a points balance or window change.
	EventEntitlementUpdated
	// EventNotice is a one-shot, user-visible notification, including every
	// surfaced error.
	EventNotice
)

// Event is what the session reports to its observer (the UI loop).
type Event struct {
	Kind        EventKind
	Connection  ConnectionState
	Match       MatchState
	Message     ChatMessage
	Entitlement Entitlement
	Notice      string
}
