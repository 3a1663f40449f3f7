package aprs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/skobkin/mesh2aprs/internal/bus"
	"github.com/skobkin/mesh2aprs/internal/connectors"
	"github.com/skobkin/mesh2aprs/internal/transport"
)

const (
	defaultLoginTimeout      = 30 * time.Second
	defaultReadTimeout       = 2 * time.Minute
	defaultReconnectDelay    = 5 * time.Second
	defaultConnectRetryDelay = 10 * time.Second
	defaultSendAttempts      = 3
	defaultSendBackoff       = time.Second
	writeTimeout             = 10 * time.Second

	loginAckPrefix = "# logresp"
)

var errSessionClosed = errors.New("aprs-is session closed")

// State is the lifecycle state of an APRS-IS session.
type State int32

const (
	StateDisconnected State = iota
	StateLoggingIn
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateLoggingIn:
		return "logging_in"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) connectionState() connectors.ConnectionState {
	switch s {
	case StateLoggingIn:
		return connectors.ConnectionStateLoggingIn
	case StateConnected:
		return connectors.ConnectionStateConnected
	default:
		return connectors.ConnectionStateDisconnected
	}
}

// Credentials identify the gateway station on APRS-IS.
type Credentials struct {
	Callsign string
	Passcode uint16
	Filter   string
}

// SendError is returned by Send once every attempt to deliver a line failed.
type SendError struct {
	Attempts int
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

type Options struct {
	Transport     transport.Dialer
	Credentials   Credentials
	ClientName    string
	ClientVersion string
	Bus           bus.MessageBus

	LoginTimeout      time.Duration
	ReadTimeout       time.Duration
	ReconnectDelay    time.Duration
	ConnectRetryDelay time.Duration
	SendAttempts      int
	SendBackoff       time.Duration
}

type sendRequest struct {
	ctx    context.Context
	line   string
	result chan error
}

type readerExit struct {
	conn transport.LineConn
	err  error
}

// Session keeps a logged-in APRS-IS connection alive and delivers report
// lines over it. All connection state is owned by a single goroutine started
// by Start; Send hands requests to it over a channel.
type Session struct {
	logger *slog.Logger
	opts   Options
	bus    bus.MessageBus

	outbox     chan sendRequest
	readerDone chan readerExit
	done       chan struct{}
	state      atomic.Int32

	// Owned by the run goroutine.
	conn        transport.LineConn
	reconnect   *time.Timer
	reconnectCh <-chan time.Time
}

func NewSession(logger *slog.Logger, opts Options) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Bus == nil {
		opts.Bus = bus.Nop{}
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.ConnectRetryDelay <= 0 {
		opts.ConnectRetryDelay = defaultConnectRetryDelay
	}
	if opts.SendAttempts <= 0 {
		opts.SendAttempts = defaultSendAttempts
	}
	if opts.SendBackoff <= 0 {
		opts.SendBackoff = defaultSendBackoff
	}

	return &Session{
		logger:     logger,
		opts:       opts,
		bus:        opts.Bus,
		outbox:     make(chan sendRequest),
		readerDone: make(chan readerExit, 1),
		done:       make(chan struct{}),
	}
}

// Start launches the session goroutine, which connects right away and keeps
// reconnecting until ctx is done.
func (s *Session) Start(ctx context.Context) {
	go s.run(ctx)
}

// Done is closed once the session goroutine has released its connection.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State reports the current session state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Send delivers one report line, connecting and retrying as needed.
func (s *Session) Send(ctx context.Context, line string) error {
	req := sendRequest{ctx: ctx, line: line, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errSessionClosed
	case s.outbox <- req:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.result:
		return err
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.stopReconnect()
	defer s.dropConn(nil)

	s.connectOrRetry(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.outbox:
			req.result <- s.handleSend(ctx, req)
		case exit := <-s.readerDone:
			if exit.conn != s.conn {
				continue
			}
			s.logger.Warn("aprs-is connection lost", "error", exit.err)
			s.dropConn(exit.err)
			s.scheduleReconnect(s.opts.ReconnectDelay)
		case <-s.reconnectCh:
			s.reconnect = nil
			s.reconnectCh = nil
			if s.conn == nil {
				s.connectOrRetry(ctx)
			}
		}

		if s.conn == nil && s.reconnectCh == nil && ctx.Err() == nil {
			s.scheduleReconnect(s.opts.ConnectRetryDelay)
		}
	}
}

func (s *Session) connectOrRetry(ctx context.Context) {
	if err := s.connect(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("aprs-is connect failed", "transport", s.opts.Transport.Name(), "target", s.opts.Transport.Target(), "retry_in", s.opts.ConnectRetryDelay, "error", err)
		s.scheduleReconnect(s.opts.ConnectRetryDelay)
	}
}

func (s *Session) connect(ctx context.Context) error {
	s.dropConn(nil)
	s.setState(StateLoggingIn, nil)

	conn, err := s.opts.Transport.Dial(ctx)
	if err != nil {
		err = fmt.Errorf("dial %s: %w", s.opts.Transport.Target(), err)
		s.setState(StateDisconnected, err)

		return err
	}

	loginCtx, cancel := context.WithTimeout(ctx, s.opts.LoginTimeout)
	err = s.login(loginCtx, conn)
	cancel()
	if err != nil {
		_ = conn.Close()
		s.setState(StateDisconnected, err)

		return err
	}

	s.conn = conn
	s.stopReconnect()
	s.setState(StateConnected, nil)
	go s.runReader(ctx, conn)

	return nil
}

func (s *Session) login(ctx context.Context, conn transport.LineConn) error {
	if err := conn.WriteLine(ctx, s.loginLine()); err != nil {
		return fmt.Errorf("send login: %w", err)
	}

	for {
		line, err := conn.ReadLine(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("await login response: %w", ctxErr)
			}

			return fmt.Errorf("await login response: %w", err)
		}
		if !strings.HasPrefix(line, loginAckPrefix) {
			s.logger.Debug("aprs-is server line", "line", line)
			continue
		}
		if strings.Contains(line, "unverified") {
			s.logger.Warn("aprs-is login unverified, reports will not be gated", "response", line)
		} else {
			s.logger.Info("aprs-is login acknowledged", "response", line)
		}

		return nil
	}
}

func (s *Session) loginLine() string {
	c := s.opts.Credentials
	line := fmt.Sprintf("user %s pass %d vers %s %s", c.Callsign, c.Passcode, s.opts.ClientName, s.opts.ClientVersion)
	if filter := strings.TrimSpace(c.Filter); filter != "" {
		line += " " + filter
	}

	return line
}

// runReader drains server lines from conn until it fails. It never touches
// session state; the exit is reported back to the run goroutine.
func (s *Session) runReader(ctx context.Context, conn transport.LineConn) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, s.opts.ReadTimeout)
		line, err := conn.ReadLine(readCtx)
		cancel()
		if errors.Is(err, transport.ErrLineTooLong) {
			s.logger.Debug("skipping oversized aprs-is server line")
			continue
		}
		if err != nil {
			select {
			case s.readerDone <- readerExit{conn: conn, err: err}:
			case <-ctx.Done():
			}

			return
		}
		s.logger.Debug("aprs-is server line", "line", line)
	}
}

func (s *Session) handleSend(ctx context.Context, req sendRequest) error {
	if err := transport.ValidateLine(req.line); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.SendAttempts; attempt++ {
		if attempt > 1 {
			if err := waitBoth(ctx, req.ctx, s.opts.SendBackoff); err != nil {
				return err
			}
		}

		if s.conn == nil {
			if err := s.connect(ctx); err != nil {
				lastErr = err
				s.logger.Warn("aprs-is send attempt failed", "attempt", attempt, "error", err)
				continue
			}
		}

		writeCtx, cancel := context.WithTimeout(req.ctx, writeTimeout)
		err := s.conn.WriteLine(writeCtx, req.line)
		cancel()
		if err == nil {
			s.logger.Debug("aprs-is line sent", "line", req.line, "attempt", attempt)

			return nil
		}
		if errors.Is(err, transport.ErrInvalidLine) {
			return err
		}
		lastErr = err
		s.logger.Warn("aprs-is send attempt failed", "attempt", attempt, "error", err)
		s.dropConn(err)
	}

	return &SendError{Attempts: s.opts.SendAttempts, Err: lastErr}
}

func (s *Session) dropConn(cause error) {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()
	s.conn = nil
	s.setState(StateDisconnected, cause)
}

func (s *Session) scheduleReconnect(delay time.Duration) {
	s.stopReconnect()
	s.reconnect = time.NewTimer(delay)
	s.reconnectCh = s.reconnect.C
}

func (s *Session) stopReconnect() {
	if s.reconnect == nil {
		return
	}
	s.reconnect.Stop()
	s.reconnect = nil
	s.reconnectCh = nil
}

func (s *Session) setState(state State, cause error) {
	prev := State(s.state.Swap(int32(state)))
	if prev == state && cause == nil {
		return
	}
	if prev != state {
		s.logger.Debug("aprs-is state changed", "from", prev.String(), "to", state.String())
	}

	status := connectors.ConnectionStatus{
		State:     state.connectionState(),
		Target:    s.opts.Transport.Target(),
		Timestamp: time.Now(),
	}
	if cause != nil {
		status.Err = cause.Error()
	}
	s.bus.Publish(connectors.TopicAPRSStatus, status)
}

// waitBoth sleeps for d unless either context ends first.
func waitBoth(ctx, reqCtx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-reqCtx.Done():
		return reqCtx.Err()
	case <-timer.C:
		return nil
	}
}
