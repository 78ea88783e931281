package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
	"github.com/GriffinCanCode/sonoswidget/internal/protocol"
	"github.com/GriffinCanCode/sonoswidget/internal/shared/id"
)

const (
	// RefreshPeriod is the interval between refresh requests.
	RefreshPeriod = 5 * time.Second

	// WidgetSelector locates the element whose children are replaced.
	WidgetSelector = "#widget"

	// NotRespondingText replaces the widget once the server looks unresponsive.
	NotRespondingText = "Server not responding!"

	// unresponsiveAfter is the liveness counter value above which the server is
	// considered unresponsive. One unanswered tick is tolerated.
	unresponsiveAfter = 1

	eventBuffer = 16
)

// ErrAlreadyRunning is returned when Run is called twice on one Session.
var ErrAlreadyRunning = errors.New("session already running")

// Page is the document the widget lives in.
type Page interface {
	Patch(selector, fragment string) error
	SetText(selector, text string) error
}

// Session owns one connection to the widget server.
type Session struct {
	id       id.SessionID
	origin   string
	endpoint string
	page     Page
	dialer   Dialer
	period   time.Duration
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	notifier func()
	request  protocol.RefreshRequest

	// Loop-owned.
	stream Stream

	// Written by the loop only; atomics so observers on other goroutines can read.
	state    atomic.Int32
	liveness atomic.Int32
	running  atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; the session logs under the "client" component.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger.Component("client")
	}
}

// WithMetrics records session activity.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(dialer Dialer) Option {
	return func(s *Session) {
		s.dialer = dialer
	}
}

// WithPeriod overrides RefreshPeriod.
func WithPeriod(period time.Duration) Option {
	return func(s *Session) {
		if period > 0 {
			s.period = period
		}
	}
}

// WithNotifier replaces the not-connected notifier. The default logs.
func WithNotifier(notify func()) Option {
	return func(s *Session) {
		s.notifier = notify
	}
}

// New prepares a session for the page loaded from origin. Nothing is dialed
// until Run.
func New(origin string, page Page, opts ...Option) (*Session, error) {
	endpoint, err := EndpointFromOrigin(origin)
	if err != nil {
		return nil, err
	}
	header, err := originHeader(origin)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       id.NewSessionID(),
		origin:   header,
		endpoint: endpoint,
		page:     page,
		dialer:   WebSocketDialer{},
		period:   RefreshPeriod,
		logger:   logging.NewNop(),
		request:  protocol.NewRefreshRequest(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = &logging.Logger{Logger: s.logger.With(zap.String("session", s.id.String()))}
	if s.notifier == nil {
		s.notifier = s.logNotConnected
	}

	s.setState(StateDisconnected)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID { return s.id }

// Endpoint returns the WebSocket URL derived from the origin.
func (s *Session) Endpoint() string { return s.endpoint }

// State returns the current connection state.
func (s *Session) State() State { return State(s.state.Load()) }

// Liveness returns the number of ticks since the last inbound message.
func (s *Session) Liveness() int { return int(s.liveness.Load()) }

type eventKind int

const (
	eventOpened eventKind = iota
	eventClosed
	eventMessage
)

type event struct {
	kind   eventKind
	stream Stream
	data   []byte
	err    error
}

// Run connects and drives the refresh ticker until ctx is done. The
// connection is never re-established after it closes.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.destroy()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan event, eventBuffer)
	s.setState(StateConnecting)
	s.logger.Info("Connecting", zap.String("endpoint", s.endpoint))
	go s.connect(ctx, events)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick()
		case ev := <-events:
			s.dispatch(ev)
		}
	}
}

// connect dials and then pumps inbound frames into events. It is the only
// reader of the stream.
func (s *Session) connect(ctx context.Context, events chan<- event) {
	emit := func(ev event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	stream, err := s.dialer.Dial(ctx, s.endpoint, s.origin)
	if err != nil {
		emit(event{kind: eventClosed, err: err})
		return
	}
	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	if !emit(event{kind: eventOpened, stream: stream}) {
		return
	}

	for {
		data, err := stream.Read()
		if err != nil {
			emit(event{kind: eventClosed, stream: stream, err: err})
			return
		}
		if !emit(event{kind: eventMessage, data: data}) {
			return
		}
	}
}

func (s *Session) dispatch(ev event) {
	switch ev.kind {
	case eventOpened:
		s.onOpen(ev.stream)
	case eventClosed:
		s.onClose(ev.err)
	case eventMessage:
		s.onMessage(ev.data)
	}
}

func (s *Session) onOpen(stream Stream) {
	if s.stream != nil && s.stream != stream {
		s.stream.Close()
	}
	s.stream = stream
	s.setState(StateConnected)
	s.logger.Info("Connected", zap.String("endpoint", s.endpoint))
}

// onClose only records the loss. The handle is kept until destroy; later
// ticks still reach the unresponsive check and their sends fail. No
// reconnection is attempted.
func (s *Session) onClose(err error) {
	s.setState(StateDisconnected)
	s.logger.Warn("Disconnected", zap.String("endpoint", s.endpoint), zap.Error(err))
}

func (s *Session) onMessage(raw []byte) {
	result := protocol.ParseUpdate(raw)
	update, ok := result.Update()
	if !ok {
		s.metrics.RecordClientMessage("malformed")
		s.logger.Error("Discarding malformed update",
			zap.String("reason", result.Reason()),
			zap.Int("bytes", len(raw)),
		)
		return
	}

	// Only well-formed updates count as a sign of life.
	s.liveness.Store(0)
	s.metrics.RecordClientMessage("ok")

	if err := s.page.Patch(WidgetSelector, update.HTML); err != nil {
		s.logger.Error("Failed to patch widget", zap.Error(err))
		return
	}
	s.logger.Debug("Widget updated", zap.Int("bytes", len(update.HTML)))
}

// tick runs one refresh cycle. The counter moves on every tick, including
// ticks skipped for lack of a stream.
func (s *Session) tick() {
	liveness := s.liveness.Add(1)
	s.metrics.RecordTick(int(liveness))

	if s.stream == nil {
		s.notifier()
		s.metrics.IncNotConnected()
		return
	}

	s.logger.Debug("Tick", zap.Int32("liveness", liveness))
	if liveness > unresponsiveAfter {
		s.metrics.IncUnresponsive()
		s.logger.Warn("Server not responding", zap.Int32("unanswered_ticks", liveness))
		if err := s.page.SetText(WidgetSelector, NotRespondingText); err != nil {
			s.logger.Error("Failed to patch widget", zap.Error(err))
		}
	}

	payload, err := s.request.Encode()
	if err != nil {
		s.logger.Error("Failed to encode refresh request", zap.Error(err))
		return
	}
	if err := s.stream.WriteText(payload); err != nil {
		s.logger.Warn("Refresh request failed", zap.Error(err))
		return
	}
	s.metrics.IncRefreshes()
	s.logger.Debug("Refresh requested", zap.String("target", s.request.Target))
}

func (s *Session) logNotConnected() {
	s.logger.Warn("No connection established", zap.String("state", s.State().String()))
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
	s.metrics.SetClientState(int(state))
}

func (s *Session) destroy() {
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
	s.setState(StateClosed)
	s.logger.Info("Session closed")
}
