package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nostrsync/negsync/negentropy"
)

const (
	DefaultMaxSessions = 16

	// openStorageTimeout bounds the wait for the storage on the connection's
	// dispatch path.
	openStorageTimeout = 5 * time.Second

	reasonTooManySessions = "blocked: too many open sessions"
	reasonStorage         = "blocked: storage unavailable"
	reasonUnknownSession  = "closed: unknown session"
	reasonInvalidMessage  = "closed: invalid message"
)

// ResponderOpt is an option for Responder.
type ResponderOpt func(r *Responder)

// WithMaxSessions limits the number of concurrently open sessions per connection.
func WithMaxSessions(n int) ResponderOpt {
	return func(r *Responder) {
		r.maxSessions = n
	}
}

// WithResponderFrameSizeLimit sets the frame size limit for the responder engines.
func WithResponderFrameSizeLimit(limit int) ResponderOpt {
	return func(r *Responder) {
		r.frameSizeLimit = limit
	}
}

// WithResponderLogger specifies the logger for the responder.
func WithResponderLogger(logger *zap.Logger) ResponderOpt {
	return func(r *Responder) {
		r.logger = logger
	}
}

// Responder serves the relay side of negentropy sync.
type Responder struct {
	provider       StorageProvider
	maxSessions    int
	frameSizeLimit int
	logger         *zap.Logger
}

// NewResponder creates a Responder that takes the items from the provider.
func NewResponder(provider StorageProvider, opts ...ResponderOpt) *Responder {
	r := &Responder{
		provider:    provider,
		maxSessions: DefaultMaxSessions,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type responderSession struct {
	neg     *negentropy.Negentropy
	release func()
}

// connResponder holds the sessions opened by a single client.
type connResponder struct {
	*Responder
	ctx      context.Context
	conn     Conn
	logger   *zap.Logger
	mu       sync.Mutex
	sessions map[string]*responderSession
}

// Attach starts serving the connection. The returned function stops serving it
// and releases all the open sessions, which also happens when the client disconnects.
func (r *Responder) Attach(conn Conn) (detach func()) {
	ctx, cancel := context.WithCancel(context.Background())
	cr := &connResponder{
		Responder: r,
		ctx:       ctx,
		conn:      conn,
		logger:    r.logger.With(zap.String("client", conn.URL())),
		sessions:  make(map[string]*responderSession),
	}
	removers := []func(){
		conn.Handle(LabelNegOpen, cr.handleOpen),
		conn.Handle(LabelNegMsg, cr.handleMsg),
		conn.Handle(LabelNegClose, cr.handleClose),
	}
	var once sync.Once
	detach = func() {
		once.Do(func() {
			for _, remove := range removers {
				remove()
			}
			cancel()
			cr.closeAll()
		})
	}
	removers = append(removers, conn.OnDisconnect(detach))
	return detach
}

func (cr *connResponder) handleOpen(msg []json.RawMessage) {
	if len(msg) < 4 {
		cr.badMessage(msg, fmt.Errorf("%w: NEG-OPEN has %d elements", ErrProtocolFormat, len(msg)))
		return
	}
	id, ok := stringAt(msg, 1)
	if !ok {
		cr.badMessage(msg, fmt.Errorf("%w: NEG-OPEN subscription ID is not a string", ErrProtocolFormat))
		return
	}
	// reusing the ID replaces the previous session
	cr.drop(id)
	payload, ok := stringAt(msg, 3)
	if !ok {
		cr.sendErr(id, reasonInvalidMessage+": payload is not a string")
		return
	}
	query, err := negentropy.HexToBytes(payload)
	if err != nil {
		cr.sendErr(id, reasonInvalidMessage+": bad hex")
		return
	}
	cr.mu.Lock()
	full := cr.maxSessions > 0 && len(cr.sessions) >= cr.maxSessions
	cr.mu.Unlock()
	if full {
		cr.sendErr(id, reasonTooManySessions)
		return
	}
	ctx, cancel := context.WithTimeout(cr.ctx, openStorageTimeout)
	storage, release, err := cr.provider.OpenStorage(ctx, msg[2])
	cancel()
	if err != nil {
		cr.logger.Warn("failed to open storage", zap.String("session", id), zap.Error(err))
		cr.sendErr(id, reasonStorage)
		return
	}
	neg, err := negentropy.New(storage,
		negentropy.WithFrameSizeLimit(cr.frameSizeLimit),
		negentropy.WithLogger(cr.logger))
	if err != nil {
		release()
		cr.logger.Error("failed to create negentropy engine", zap.Error(err))
		cr.sendErr(id, reasonStorage)
		return
	}
	s := &responderSession{neg: neg, release: release}
	cr.mu.Lock()
	cr.sessions[id] = s
	responderSessions.Inc()
	cr.mu.Unlock()
	cr.logger.Debug("sync session opened", zap.String("session", id))
	cr.respond(id, s, query)
}

func (cr *connResponder) handleMsg(msg []json.RawMessage) {
	fields, err := stringFields(msg, 3)
	if err != nil {
		cr.badMessage(msg, err)
		return
	}
	id := fields[1]
	cr.mu.Lock()
	s, found := cr.sessions[id]
	cr.mu.Unlock()
	if !found {
		cr.sendErr(id, reasonUnknownSession)
		return
	}
	query, err := negentropy.HexToBytes(fields[2])
	if err != nil {
		cr.drop(id)
		cr.sendErr(id, reasonInvalidMessage+": bad hex")
		return
	}
	cr.respond(id, s, query)
}

func (cr *connResponder) handleClose(msg []json.RawMessage) {
	fields, err := stringFields(msg, 2)
	if err != nil {
		cr.badMessage(msg, err)
		return
	}
	if cr.drop(fields[1]) {
		cr.logger.Debug("sync session closed", zap.String("session", fields[1]))
	}
}

func (cr *connResponder) respond(id string, s *responderSession, query []byte) {
	res, err := s.neg.Reconcile(query)
	if err != nil {
		cr.logger.Debug("reconcile failed", zap.String("session", id), zap.Error(err))
		cr.drop(id)
		cr.sendErr(id, reasonInvalidMessage)
		return
	}
	messageSize.WithLabelValues("in").Observe(float64(len(query)))
	messageSize.WithLabelValues("out").Observe(float64(len(res.Next)))
	cr.send(EncodeNegMsg(id, res.Next))
}

// drop releases the session, returning true if it was open.
func (cr *connResponder) drop(id string) bool {
	cr.mu.Lock()
	s, found := cr.sessions[id]
	delete(cr.sessions, id)
	cr.mu.Unlock()
	if !found {
		return false
	}
	responderSessions.Dec()
	s.release()
	return true
}

func (cr *connResponder) closeAll() {
	cr.mu.Lock()
	sessions := cr.sessions
	cr.sessions = make(map[string]*responderSession)
	cr.mu.Unlock()
	for _, s := range sessions {
		responderSessions.Dec()
		s.release()
	}
}

func (cr *connResponder) badMessage(msg []json.RawMessage, err error) {
	label, _ := stringAt(msg, 0)
	cr.logger.Debug("malformed message", zap.String("label", label), zap.Error(err))
	cr.send(EncodeNotice("bad msg: " + err.Error()))
}

func (cr *connResponder) sendErr(id, reason string) {
	responderErrors.WithLabelValues(reason).Inc()
	cr.send(EncodeNegErr(id, reason))
}

func (cr *connResponder) send(msg []byte) {
	if err := cr.conn.Send(cr.ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		cr.logger.Debug("failed to send message", zap.Error(err))
	}
}
