package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/driftchat-client/internal/config"
	"github.com/driftchat/driftchat-client/internal/proto"
)

const (
	defaultTickInterval = time.Second
	defaultDialTimeout  = 10 * time.Second
	closeTimeout        = 3 * time.Second
)

// SessionOptions configures a Session.
type SessionOptions struct {
	Config     config.Config
	Dialer     Dialer
	Logger     *zerolog.Logger
	SaveConfig func(config.Config) // persists the client record; may be nil
	Archiver   Archiver            // transcript sink; may be nil

	// TickInterval overrides the entitlement expiry tick, for tests.
	TickInterval time.Duration
	DialTimeout  time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Session owns the client's connection, match, and entitlement state. All
// mutation happens on the Run goroutine; exported methods only enqueue
// commands, so any goroutine may call them.
type Session struct {
	dial        Dialer
	log         *zerolog.Logger
	saveCfg     func(config.Config)
	archiver    Archiver
	tickEvery   time.Duration
	dialTimeout time.Duration
	now         func() time.Time

	commands chan command
	events   chan Event
	done     chan struct{}

	// State below is owned exclusively by Run.
	cfg             config.Config
	conn            ConnectionState
	match           MatchState
	channel         Channel
	clientID        string
	partnerGender   string
	partnerDistance float64
	matchStartedAt  time.Time
	messages        []ChatMessage
	ent             Entitlement
}

// NewSession builds a session from the persisted client record.
func NewSession(opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		dial:        opts.Dialer,
		log:         logger,
		saveCfg:     opts.SaveConfig,
		archiver:    opts.Archiver,
		tickEvery:   tick,
		dialTimeout: dialTimeout,
		now:         now,
		commands:    make(chan command, 16),
		events:      make(chan Event, 128),
		done:        make(chan struct{}),
		cfg:         opts.Config,
		clientID:    opts.Config.ClientID,
		ent: Entitlement{
			Points:                opts.Config.Points,
			PreferenceActiveUntil: opts.Config.PreferenceActiveUntil,
		},
	}
}

// Events returns the observable event stream. Closed when Run returns.
func (s *Session) Events() <-chan Event { return s.events }

// Run is the single state-owning loop. It consumes caller commands, channel
// events, and the entitlement expiry tick until the context is cancelled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()
	defer close(s.events)
	defer close(s.done)

	for {
		// A nil channel variable blocks forever, which is exactly what we
		// want while disconnected.
		var chEvents <-chan ChannelEvent
		if s.channel != nil {
			chEvents = s.channel.Events()
		}

		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case cmd := <-s.commands:
			s.handleCommand(ctx, cmd)
		case ev, ok := <-chEvents:
			if !ok {
				s.handleClosed(nil)
				continue
			}
			s.handleChannelEvent(ctx, ev)
		case <-ticker.C:
			s.tickEntitlement(ctx)
		}
	}
}

// Connect opens a channel and starts the registration round-trip.
func (s *Session) Connect() { s.enqueue(command{kind: cmdConnect}) }

// Disconnect stops the channel. Outstanding invocations fail through the
// channel's own closure; there is no explicit cancel signal.
func (s *Session) Disconnect() { s.enqueue(command{kind: cmdDisconnect}) }

// JoinQueue enters the matching queue.
func (s *Session) JoinQueue() { s.enqueue(command{kind: cmdJoinQueue}) }

// SendMessage delivers chat text to the current partner. A no-op unless
// connected and matched.
func (s *Session) SendMessage(text string) {
	s.enqueue(command{kind: cmdSendMessage, text: text})
}

// EndChat terminates the current match.
func (s *Session) EndChat() { s.enqueue(command{kind: cmdEndChat}) }

// SavePreferences persists a matching preference. Non-default values are
// rejected unless a preference window is active.
func (s *Session) SavePreferences(preferredGender string, maxDistanceKm int) {
	s.enqueue(command{kind: cmdSavePreferences, preferredGender: preferredGender, maxDistanceKm: maxDistanceKm})
}

// ActivatePreference spends points to open a preference window.
func (s *Session) ActivatePreference(preferredGender string, maxDistanceKm int) {
	s.enqueue(command{kind: cmdActivatePreference, preferredGender: preferredGender, maxDistanceKm: maxDistanceKm})
}

// UpdateLocation refreshes the client position.
func (s *Session) UpdateLocation(latitude, longitude float64) {
	s.enqueue(command{kind: cmdUpdateLocation, latitude: latitude, longitude: longitude})
}

// UpdateGender changes the client's own gender.
func (s *Session) UpdateGender(gender string) {
	s.enqueue(command{kind: cmdUpdateGender, gender: gender})
}

// SystemNotice appends a system message to the conversation. Used by
// collaborators such as the upload orchestrator.
func (s *Session) SystemNotice(text string) {
	s.enqueue(command{kind: cmdSystemNotice, text: text})
}

// Snapshot returns a consistent copy of session state.
func (s *Session) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case s.commands <- command{kind: cmdSnapshot, reply: reply}:
	case <-s.done:
		return Snapshot{}
	}
	select {
	case snap := <-reply:
		return snap
	case <-s.done:
		return Snapshot{}
	}
}

// ClientID returns the registered identity as of the last snapshot.
func (s *Session) ClientID() string { return s.Snapshot().ClientID }

func (s *Session) enqueue(cmd command) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

func (s *Session) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdConnect:
		s.handleConnect(ctx)
	case cmdDisconnect:
		s.handleDisconnect()
	case cmdJoinQueue:
		s.handleJoinQueue(ctx)
	case cmdSendMessage:
		s.handleSendMessage(ctx, cmd.text)
	case cmdEndChat:
		s.handleEndChat(ctx)
	case cmdSavePreferences:
		s.handleSavePreferences(ctx, cmd)
	case cmdActivatePreference:
		s.handleActivatePreference(ctx, cmd)
	case cmdUpdateLocation:
		s.handleUpdateLocation(ctx, cmd)
	case cmdUpdateGender:
		s.handleUpdateGender(ctx, cmd)
	case cmdSystemNotice:
		s.systemMessage(cmd.text)
	case cmdSnapshot:
		cmd.reply <- s.snapshot()
	}
}

func (s *Session) handleConnect(ctx context.Context) {
	if s.conn != Disconnected {
		s.notice("Already connected or connecting.")
		return
	}
	s.setConnection(Connecting)

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	ch, err := s.dial(dialCtx, s.cfg.ServerURL)
	if err != nil {
		s.log.Error().Err(err).Str("server", s.cfg.ServerURL).Msg("dial failed")
		s.setConnection(ConnectionFailed)
		s.notice("Connecting to the server failed: " + err.Error())
		s.setConnection(Disconnected)
		return
	}
	s.channel = ch

	if err := s.register(ctx); err != nil {
		s.discardChannel()
		s.setConnection(ConnectionFailed)
		s.notice("Registration failed: " + err.Error())
		s.setConnection(Disconnected)
		return
	}
	// The session stays Connecting until the Registered push confirms the
	// round-trip.
}

func (s *Session) register(ctx context.Context) error {
	prefGender, maxDist := s.effectivePreference()
	args := proto.RegisterArgs{
		ClientID:              s.clientID,
		Latitude:              s.cfg.Latitude,
		Longitude:             s.cfg.Longitude,
		Gender:                s.cfg.Gender,
		PreferredGender:       prefGender,
		MaxDistance:           maxDist,
		Points:                s.ent.Points,
		PreferenceActiveUntil: s.ent.PreferenceActiveUntil,
	}
	return s.invoke(ctx, proto.TargetRegister, args)
}

func (s *Session) handleDisconnect() {
	if s.channel == nil {
		s.notice("Not connected.")
		return
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.channel.Close(closeCtx); err != nil {
		s.log.Warn().Err(err).Msg("channel close")
	}
	s.channel = nil
	s.setMatch(MatchIdle)
	s.setConnection(Disconnected)
}

func (s *Session) handleJoinQueue(ctx context.Context) {
	if s.conn != Connected {
		s.notice("Connect before joining the queue.")
		return
	}
	if s.match != MatchIdle && s.match != MatchEnded {
		s.notice("Already waiting or matched.")
		return
	}

	prefGender, maxDist := s.effectivePreference()
	args := proto.JoinQueueArgs{
		Latitude:        s.cfg.Latitude,
		Longitude:       s.cfg.Longitude,
		Gender:          s.cfg.Gender,
		PreferredGender: prefGender,
		MaxDistance:     maxDist,
	}
	if err := s.invoke(ctx, proto.TargetJoinWaitingQueue, args); err != nil {
		s.notice("Joining the queue failed: " + err.Error())
		return
	}
	s.setMatch(MatchQueued)
}

func (s *Session) handleSendMessage(ctx context.Context, text string) {
	// Explicitly rejected, never queued; the caller sees a no-op.
	if s.conn != Connected || s.match != MatchActive {
		s.log.Debug().Msg("send message dropped: no active match")
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := s.invoke(ctx, proto.TargetSendMessage, proto.SendMessageArgs{Text: text}); err != nil {
		s.notice("Sending the message failed: " + err.Error())
	}
	// No optimistic echo: the message appears when the server's broadcast
	// comes back, so both participants see the same order.
}

func (s *Session) handleEndChat(ctx context.Context) {
	if s.conn != Connected || s.match != MatchActive {
		s.notice("No active chat to end.")
		return
	}
	if err := s.invoke(ctx, proto.TargetEndChat, nil); err != nil {
		s.notice("Ending the chat failed: " + err.Error())
		return
	}
	s.endMatch("You ended the chat. Join the queue to meet someone new.")
}

func (s *Session) handleUpdateLocation(ctx context.Context, cmd command) {
	s.cfg.Latitude = cmd.latitude
	s.cfg.Longitude = cmd.longitude
	s.persist()
	if s.conn != Connected {
		return
	}
	args := proto.LocationArgs{Latitude: cmd.latitude, Longitude: cmd.longitude}
	if err := s.invoke(ctx, proto.TargetUpdateLocation, args); err != nil {
		s.notice("Updating location failed: " + err.Error())
	}
}

func (s *Session) handleUpdateGender(ctx context.Context, cmd command) {
	s.cfg.Gender = cmd.gender
	s.persist()
	if s.conn != Connected {
		return
	}
	if err := s.invoke(ctx, proto.TargetUpdateGender, proto.GenderArgs{Gender: cmd.gender}); err != nil {
		s.notice("Updating gender failed: " + err.Error())
	}
}

func (s *Session) handleChannelEvent(ctx context.Context, ev ChannelEvent) {
	switch {
	case ev.Closed:
		s.handleClosed(ev.Err)
	case ev.Reopened:
		s.handleReopened(ctx)
	case ev.Push != nil:
		s.handlePush(ctx, ev.Push)
	}
}

func (s *Session) handleClosed(err error) {
	s.channel = nil
	s.setMatch(MatchIdle)
	s.setConnection(Disconnected)
	if err != nil {
		s.systemMessage("Connection to the server was lost: " + err.Error())
	}
}

// handleReopened runs after the transport's automatic reconnect. The server
// retains no session state across a dropped channel, so the previous match
// is forgotten and registration starts over.
func (s *Session) handleReopened(ctx context.Context) {
	s.setMatch(MatchIdle)
	s.setConnection(Connecting)
	s.systemMessage("Reconnected to the server; registering again.")
	if err := s.register(ctx); err != nil {
		s.discardChannel()
		s.setConnection(ConnectionFailed)
		s.notice("Re-registration failed: " + err.Error())
		s.setConnection(Disconnected)
	}
}

func (s *Session) handlePush(ctx context.Context, push proto.ServerEvent) {
	switch ev := push.(type) {
	case proto.Registered:
		s.handleRegistered(ctx, ev)
	case proto.EnqueuedToWaiting:
		if s.match != MatchQueued {
			s.setMatch(MatchQueued)
		}
	case proto.Matched:
		s.handleMatched(ev)
	case proto.MatchEnded:
		if s.match == MatchActive {
			s.endMatch("Your partner ended the chat.")
		}
	case proto.ReceiveMessage:
		s.appendMessage(ChatMessage{
			Origin:    s.originOf(ev.SenderID),
			Content:   ev.Message,
			Timestamp: ev.Timestamp,
		})
	case proto.ReceiveImageMessage:
		s.appendMessage(ChatMessage{
			Origin:       s.originOf(ev.SenderID),
			Content:      "[image]",
			Timestamp:    ev.Timestamp,
			ThumbnailURL: s.cfg.ServerURL + ev.ThumbnailURL,
			ImageURL:     s.cfg.ServerURL + ev.ImageURL,
		})
	case proto.PreferencesUpdated:
		s.systemMessage("Matching preference saved on the server.")
	case proto.PointsUpdated:
		s.applyPointsUpdate(ev)
	default:
		s.log.Warn().Str("push", push.PushName()).Msg("unhandled push")
	}
}

func (s *Session) handleRegistered(ctx context.Context, ev proto.Registered) {
	s.clientID = ev.ClientID
	s.cfg.ClientID = ev.ClientID
	// Entitlement is merged from server-reported values on every
	// registration; the server wins.
	s.ent.Points = ev.Points
	s.ent.PreferenceActiveUntil = ev.PreferenceActiveUntil
	s.cfg.Points = ev.Points
	s.cfg.PreferenceActiveUntil = ev.PreferenceActiveUntil
	s.persist()
	s.emitEntitlement()

	if s.conn == Connecting {
		s.setConnection(Connected)
		if s.cfg.AutoJoinQueue {
			s.handleJoinQueue(ctx)
		}
	}
}

func (s *Session) handleMatched(ev proto.Matched) {
	s.partnerGender = ev.PartnerGender
	s.partnerDistance = ev.Distance
	s.matchStartedAt = s.now()
	s.messages = nil
	s.emit(Event{Kind: EventHistoryCleared})
	s.setMatch(MatchActive)
	s.systemMessage(fmt.Sprintf("Matched with a %s partner %.1f km away.", ev.PartnerGender, ev.Distance))
}

// endMatch flips the match state, announces the end, and archives the
// conversation. Both the local and the partner-initiated paths come through
// here.
func (s *Session) endMatch(announcement string) {
	s.systemMessage(announcement)
	s.setMatch(MatchEnded)
	s.archiveTranscript()
}

func (s *Session) archiveTranscript() {
	if s.archiver == nil || len(s.messages) == 0 {
		return
	}
	t := Transcript{
		PartnerGender: s.partnerGender,
		DistanceKm:    s.partnerDistance,
		StartedAt:     s.matchStartedAt,
		EndedAt:       s.now(),
		Messages:      append([]ChatMessage(nil), s.messages...),
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.archiver.SaveTranscript(saveCtx, t); err != nil {
		s.log.Warn().Err(err).Msg("transcript archive failed")
	}
}

// effectivePreference gates non-default preferences behind the entitlement
// window: with no active window, defaults go on the wire.
func (s *Session) effectivePreference() (string, int) {
	if s.ent.Active(s.now()) {
		return s.cfg.PreferredGender, s.cfg.MaxDistanceKm
	}
	if s.cfg.PreferenceIsDefault() {
		return s.cfg.PreferredGender, s.cfg.MaxDistanceKm
	}
	return config.DefaultPreferredGender, config.DistanceUnlimited
}

func (s *Session) originOf(senderID string) Origin {
	if senderID == s.clientID {
		return OriginSelf
	}
	return OriginPeer
}

func (s *Session) invoke(ctx context.Context, target string, args any) error {
	if s.channel == nil {
		return ErrNotConnected
	}
	if err := s.channel.Invoke(ctx, target, args); err != nil {
		return fmt.Errorf("invoke %s: %w", target, err)
	}
	return nil
}

func (s *Session) discardChannel() {
	if s.channel == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = s.channel.Close(closeCtx)
	s.channel = nil
}

func (s *Session) shutdown() {
	s.discardChannel()
	s.conn = Disconnected
	s.match = MatchIdle
}

func (s *Session) setConnection(state ConnectionState) {
	if s.conn == state {
		return
	}
	s.conn = state
	s.log.Info().Stringer("connection", state).Msg("connection state")
	s.emitState()
}

func (s *Session) setMatch(state MatchState) {
	if s.match == state {
		return
	}
	s.match = state
	s.log.Info().Stringer("match", state).Msg("match state")
	s.emitState()
}

func (s *Session) emitState() {
	s.emit(Event{Kind: EventStateChanged, Connection: s.conn, Match: s.match})
}

func (s *Session) emitEntitlement() {
	s.emit(Event{Kind: EventEntitlementUpdated, Entitlement: s.ent})
}

func (s *Session) notice(text string) {
	s.emit(Event{Kind: EventNotice, Notice: text})
}

func (s *Session) systemMessage(text string) {
	s.appendMessage(ChatMessage{Origin: OriginSystem, Content: text, Timestamp: s.now()})
}

func (s *Session) appendMessage(m ChatMessage) {
	s.messages = append(s.messages, m)
	s.emit(Event{Kind: EventMessageAppended, Message: m})
}

func (s *Session) emit(ev Event) {
	s.events <- ev
}

func (s *Session) persist() {
	if s.saveCfg == nil {
		return
	}
	s.saveCfg(s.cfg)
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Connection:      s.conn,
		Match:           s.match,
		ClientID:        s.clientID,
		PartnerGender:   s.partnerGender,
		PartnerDistance: s.partnerDistance,
		PreferredGender: s.cfg.PreferredGender,
		MaxDistanceKm:   s.cfg.MaxDistanceKm,
		Entitlement:     s.ent,
		Messages:        append([]ChatMessage(nil), s.messages...),
	}
}
