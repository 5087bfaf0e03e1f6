package hub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/driftchat/driftchat-client/internal/core"
	"github.com/driftchat/driftchat-client/internal/proto"
)

const (
	hubPath            = "/chathub"
	defaultAttempts    = 5
	defaultDelay       = 2 * time.Second
	defaultDialTimeout = 10 * time.Second
)

// ErrClosed is returned by Invoke after the channel stopped.
var ErrClosed = errors.New("hub channel closed")

// Options configures a channel.
type Options struct {
	ServerURL string
	// ReconnectAttempts bounds the automatic reconnect after a transport
	// drop. Zero means the default; negative disables reconnecting.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Channel is one live hub connection. Server pushes and lifecycle events are
// delivered in order on a single stream; a dropped socket is replaced inside
// the channel, the channel value handed out never changes.
type Channel struct {
	opts Options
	log  *zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool

	events     chan core.ChannelEvent
	readCtx    context.Context
	cancelRead context.CancelFunc
}

var _ core.Channel = (*Channel)(nil)

// Dial opens a channel to {serverURL}/chathub.
func Dial(ctx context.Context, opts Options, logger *zerolog.Logger) (*Channel, error) {
	wsURL, err := HubURL(opts.ServerURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	if opts.ReconnectAttempts == 0 {
		opts.ReconnectAttempts = defaultAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultDelay
	}

	readCtx, cancelRead := context.WithCancel(context.Background())
	ch := &Channel{
		opts:       opts,
		log:        logger,
		conn:       conn,
		events:     make(chan core.ChannelEvent, 32),
		readCtx:    readCtx,
		cancelRead: cancelRead,
	}
	go ch.readLoop(wsURL)

	logger.Info().Str("url", wsURL).Msg("hub channel open")
	return ch, nil
}

// HubURL derives the websocket endpoint from the configured server URL.
func HubURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + hubPath
	return u.String(), nil
}

// Invoke writes one invocation envelope. Single attempt, no retry.
func (c *Channel) Invoke(ctx context.Context, target string, args any) error {
	inv, err := proto.NewInvocation(target, args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", target, err)
	}

	c.mu.Lock()
	conn, closing := c.conn, c.closing
	c.mu.Unlock()
	if closing || conn == nil {
		return ErrClosed
	}
	if err := wsjson.Write(ctx, conn, inv); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// Events returns the ordered event stream. Closed after the final Closed
// event is delivered.
func (c *Channel) Events() <-chan core.ChannelEvent { return c.events }

// Close stops the channel. Outstanding invocations fail through the socket
// closure.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	c.cancelRead()
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client stop")
	}
	return nil
}

func (c *Channel) readLoop(wsURL string) {
	defer close(c.events)

	for {
		err := c.readUntilError()

		if c.isClosing() {
			c.events <- core.ChannelEvent{Closed: true}
			return
		}
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			// Server said goodbye; not worth fighting.
			c.events <- core.ChannelEvent{Closed: true}
			return
		}

		if recErr := c.redial(wsURL); recErr != nil {
			if errors.Is(recErr, ErrClosed) {
				c.events <- core.ChannelEvent{Closed: true}
				return
			}
			c.log.Error().Err(err).Msg("hub channel gone: reconnect exhausted")
			c.events <- core.ChannelEvent{Closed: true, Err: err}
			return
		}
		c.events <- core.ChannelEvent{Reopened: true}
	}
}

func (c *Channel) readUntilError() error {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return ErrClosed
		}

		var push proto.Push
		if err := wsjson.Read(c.readCtx, conn, &push); err != nil {
			return err
		}

		ev, err := proto.DecodePush(push)
		if err != nil {
			// Schema drift tolerance: log and skip, never kill the stream.
			c.log.Warn().Err(err).Str("event", push.Event).Msg("dropping undecodable push")
			continue
		}

		// Blocking send keeps server ordering intact.
		select {
		case c.events <- core.ChannelEvent{Push: ev}:
		case <-c.readCtx.Done():
			return ErrClosed
		}
	}
}

func (c *Channel) redial(wsURL string) error {
	if c.opts.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect disabled")
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		timer := time.NewTimer(time.Duration(attempt) * c.opts.ReconnectDelay)
		select {
		case <-c.readCtx.Done():
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}

		dialCtx, cancel := context.WithTimeout(c.readCtx, defaultDialTimeout)
		conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
		cancel()
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("hub reconnect failed")
			continue
		}

		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "client stop")
			return ErrClosed
		}
		c.conn = conn
		c.mu.Unlock()
		c.log.Info().Int("attempt", attempt).Msg("hub channel reopened")
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no reconnect attempts made")
	}
	return lastErr
}

func (c *Channel) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}
