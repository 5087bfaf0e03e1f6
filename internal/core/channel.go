package core

import (
	"context"

	"github.com/driftchat/driftchat-client/internal/proto"
)

// ChannelEvent is one item on a channel's ordered event stream. Exactly one
// of Push, Reopened, or Closed describes the event.
type ChannelEvent struct {
	// Push is a decoded server push; nil for lifecycle events.
	Push proto.ServerEvent
	// Reopened signals the transport reconnected after a drop. The server
	// keeps no session state across a dropped channel, so the session must
	// re-register and forget its match state.
	Reopened bool
	// Closed signals the channel is gone for good (explicit stop or
	// reconnect attempts exhausted). Err carries the reason, if any.
	Closed bool
	Err    error
}

// Channel is a live bidirectional connection to the hub endpoint. Events are
// delivered in the order the server sent them; Invoke is a single attempt
// with no retry.
type Channel interface {
	Invoke(ctx context.Context, target string, args any) error
	Events() <-chan ChannelEvent
	Close(ctx context.Context) error
}

// Dialer opens a new channel to the given server. The session dials one
// channel per connect attempt and discards it wholesale on closure.
type Dialer func(ctx context.Context, serverURL string) (Channel, error)

// Archiver receives finished conversations before history is cleared.
type Archiver interface {
	SaveTranscript(ctx context.Context, t Transcript) error
}
