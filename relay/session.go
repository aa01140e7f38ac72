package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/negentropy"
)

// DefaultSessionTimeout is the default limit on the session duration.
const DefaultSessionTimeout = 30 * time.Second

// State is the state of a sync session.
type State int32

const (
	StateIdle State = iota
	StateActive
	StateComplete
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("<unknown state %d>", int32(s))
	}
}

// Result is the outcome of a successful sync session.
type Result struct {
	// Need contains the IDs the relay has and we lack.
	Need IDSet `json:"need"`
	// Have contains the IDs we have and the relay lacks.
	Have IDSet `json:"have"`
}

// NewResult creates an empty Result.
func NewResult() Result {
	return Result{Need: make(IDSet), Have: make(IDSet)}
}

// Merge adds the contents of other to the result.
func (r Result) Merge(other Result) {
	r.Need.Merge(other.Need)
	r.Have.Merge(other.Have)
}

// session events, passed from the connection handlers to the session loop.
type (
	event interface {
		isEvent()
	}
	negMsg struct {
		payload string
	}
	negErr struct {
		reason string
	}
	negClose     struct{}
	notice       struct{ text string }
	disconnected struct{}
	malformed    struct {
		label string
		err   error
	}
)

func (negMsg) isEvent()       {}
func (negErr) isEvent()       {}
func (negClose) isEvent()     {}
func (notice) isEvent()       {}
func (disconnected) isEvent() {}
func (malformed) isEvent()    {}

// SessionOpt is an option for Session.
type SessionOpt func(s *Session)

// WithSessionTimeout limits the duration of the session.
func WithSessionTimeout(d time.Duration) SessionOpt {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithSessionLogger specifies the logger for the session.
func WithSessionLogger(logger *zap.Logger) SessionOpt {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock specifies the clock used for the session timeout.
func WithClock(clock clockwork.Clock) SessionOpt {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithSessionID overrides the generated session (subscription) ID.
func WithSessionID(id string) SessionOpt {
	return func(s *Session) {
		s.id = id
	}
}

// NewSessionID generates a random session ID.
func NewSessionID() string {
	return "neg-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Session is a single negentropy sync exchange with a relay. Multiple sessions may
// share a connection, each one using its own subscription ID.
type Session struct {
	id      string
	conn    Conn
	filters json.RawMessage
	rec     Reconciler
	timeout time.Duration
	logger  *zap.Logger
	clock   clockwork.Clock

	state    atomic.Int32
	result   Result
	rounds   int
	events   chan event
	alerts   chan event
	done     chan struct{}
	teardown sync.Once
	removers []func()
}

// NewSession creates a sync session with the relay on the connection.
// The filters are passed to the relay as is.
func NewSession(conn Conn, filters json.RawMessage, rec Reconciler, opts ...SessionOpt) *Session {
	s := &Session{
		id:      NewSessionID(),
		conn:    conn,
		filters: filters,
		rec:     rec,
		timeout: DefaultSessionTimeout,
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
		result:  NewResult(),
		events:  make(chan event, 1),
		alerts:  make(chan event, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("relay", conn.URL()), zap.String("session", s.id))
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state of the session.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run performs the exchange and blocks until it's complete, has failed, has timed out,
// or the context is canceled.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateActive)) {
		return Result{}, ErrSessionActive
	}
	start := s.clock.Now()
	timer := s.clock.NewTimer(s.timeout)
	defer timer.Stop()
	s.register()

	res, err := s.run(ctx, timer.Chan())
	s.finish(err)
	took := s.clock.Since(start)
	if err != nil {
		s.logger.Debug("sync session failed",
			zap.Int("rounds", s.rounds),
			zap.Duration("took", took),
			zap.Error(err))
		sessionsFailed.Inc()
		return Result{}, err
	}
	s.logger.Debug("sync session complete",
		zap.Int("rounds", s.rounds),
		zap.Int("need", res.Need.Len()),
		zap.Int("have", res.Have.Len()),
		zap.Duration("took", took))
	sessionsComplete.Inc()
	sessionRounds.Observe(float64(s.rounds))
	sessionDuration.Observe(took.Seconds())
	needItems.Add(float64(res.Need.Len()))
	haveItems.Add(float64(res.Have.Len()))
	return res, nil
}

func (s *Session) run(ctx context.Context, timeout <-chan time.Time) (Result, error) {
	initial, err := s.rec.Initiate()
	if err != nil {
		return Result{}, fmt.Errorf("initiate: %w", err)
	}
	if err := s.send(ctx, EncodeNegOpen(s.id, s.filters, initial)); err != nil {
		return Result{}, err
	}
	s.logger.Debug("sent NEG-OPEN", zap.Int("size", len(initial)))
	for {
		select {
		case <-ctx.Done():
			s.sendClose()
			return Result{}, ctx.Err()
		case <-timeout:
			s.sendClose()
			return Result{}, fmt.Errorf("%w after %v", ErrTimeout, s.timeout)
		case ev := <-s.alerts:
			// a message dispatched before the alert is handled first
			select {
			case pending := <-s.events:
				done, err := s.handle(ctx, pending)
				switch {
				case err != nil:
					return Result{}, err
				case done:
					return s.result, nil
				}
			default:
			}
			_, err := s.handle(ctx, ev)
			return Result{}, err
		case ev := <-s.events:
			done, err := s.handle(ctx, ev)
			switch {
			case err != nil:
				return Result{}, err
			case done:
				return s.result, nil
			}
		}
	}
}

// handle processes an event and returns true if the session is complete.
func (s *Session) handle(ctx context.Context, ev event) (bool, error) {
	switch ev := ev.(type) {
	case negMsg:
		return s.handleNegMsg(ctx, ev.payload)
	case negErr:
		return false, &RelayError{Relay: s.conn.URL(), Reason: ev.reason}
	case negClose:
		return true, nil
	case notice:
		return false, fmt.Errorf("%w: %s: %s", ErrRelayUnsupported, s.conn.URL(), ev.text)
	case disconnected:
		return false, fmt.Errorf("%w: %s", ErrDisconnected, s.conn.URL())
	case malformed:
		return false, fmt.Errorf("invalid %s from %s: %w", ev.label, s.conn.URL(), ev.err)
	default:
		panic(fmt.Sprintf("BUG: unexpected event %T", ev))
	}
}

func (s *Session) handleNegMsg(ctx context.Context, payload string) (bool, error) {
	query, err := negentropy.HexToBytes(payload)
	if err != nil {
		return false, fmt.Errorf("%w: bad NEG-MSG payload from %s: %w", ErrProtocolFormat, s.conn.URL(), err)
	}
	res, err := s.rec.Reconcile(query)
	if err != nil {
		return false, fmt.Errorf("reconcile with %s: %w", s.conn.URL(), err)
	}
	s.rounds++
	s.result.Need.AddIDs(res.Need)
	s.result.Have.AddIDs(res.Have)
	messageSize.WithLabelValues("in").Observe(float64(len(query)))
	if res.Next != nil {
		messageSize.WithLabelValues("out").Observe(float64(len(res.Next)))
		return false, s.send(ctx, EncodeNegMsg(s.id, res.Next))
	}
	if err := s.send(ctx, EncodeNegClose(s.id)); err != nil {
		return false, err
	}
	return true, nil
}

// deliver passes the event to the session loop unless the session is already over.
func (s *Session) deliver(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// alert passes a fatal event to the session loop without waiting. Only the first
// one matters, as it ends the session.
func (s *Session) alert(ev event) {
	select {
	case s.alerts <- ev:
	default:
	}
}

// ownMessage validates the message shape and checks that it is addressed to this
// session. Malformed messages are delivered to the session as fatal errors.
func (s *Session) ownMessage(label string, msg []json.RawMessage, n int) ([]string, bool) {
	fields, err := stringFields(msg, n)
	if err != nil {
		s.alert(malformed{label: label, err: err})
		return nil, false
	}
	return fields, fields[1] == s.id
}

func (s *Session) register() {
	s.removers = append(s.removers,
		s.conn.Handle(LabelNegMsg, func(msg []json.RawMessage) {
			if fields, ok := s.ownMessage(LabelNegMsg, msg, 3); ok {
				s.deliver(negMsg{payload: fields[2]})
			}
		}),
		s.conn.Handle(LabelNegErr, func(msg []json.RawMessage) {
			if fields, ok := s.ownMessage(LabelNegErr, msg, 3); ok {
				s.deliver(negErr{reason: fields[2]})
			}
		}),
		s.conn.Handle(LabelNegClose, func(msg []json.RawMessage) {
			if _, ok := s.ownMessage(LabelNegClose, msg, 2); ok {
				s.deliver(negClose{})
			}
		}),
		s.conn.OnNotice(func(text string) {
			if !IsNegentropyUnsupported(text) {
				s.logger.Debug("ignoring notice", zap.String("text", text))
				return
			}
			s.alert(notice{text: text})
		}),
		s.conn.OnDisconnect(func() {
			s.alert(disconnected{})
		}),
	)
}

// finish moves the session to the terminal state and removes all the handlers.
func (s *Session) finish(err error) {
	s.teardown.Do(func() {
		if err != nil {
			s.state.Store(int32(StateFailed))
		} else {
			s.state.Store(int32(StateComplete))
		}
		close(s.done)
		for _, remove := range s.removers {
			remove()
		}
		s.removers = nil
	})
}

// sendClose tells the relay to drop the session state, if the relay is still there.
func (s *Session) sendClose() {
	if !s.conn.Connected() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.send(ctx, EncodeNegClose(s.id)); err != nil {
		s.logger.Debug("failed to send NEG-CLOSE", zap.Error(err))
	}
}

func (s *Session) send(ctx context.Context, msg []byte) error {
	if !s.conn.Connected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, s.conn.URL())
	}
	if err := s.conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to relay %s: %w", s.conn.URL(), err)
	}
	return nil
}

// IsFatal returns true if the error is a protocol level failure rather than
// a transport or timeout problem.
func IsFatal(err error) bool {
	var relayErr *RelayError
	return errors.Is(err, ErrProtocolFormat) ||
		errors.Is(err, ErrRelayUnsupported) ||
		errors.As(err, &relayErr)
}
