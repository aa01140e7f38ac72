package relay

import (
	"sync"

	"go.uber.org/zap"
)

// Router dispatches incoming relay messages to the registered handlers.
// It implements the listener part of Conn for the transports.
type Router struct {
	logger *zap.Logger

	mu           sync.Mutex
	nextID       uint64
	handlers     map[string]map[uint64]MessageHandler
	notices      map[uint64]func(string)
	disconnects  map[uint64]func()
	disconnected bool
}

// NewRouter creates a Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		logger:      logger,
		handlers:    make(map[string]map[uint64]MessageHandler),
		notices:     make(map[uint64]func(string)),
		disconnects: make(map[uint64]func()),
	}
}

func (r *Router) register(add func(id uint64), del func(id uint64)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	add(id)
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			del(id)
		})
	}
}

// Handle implements Conn.
func (r *Router) Handle(label string, h MessageHandler) (remove func()) {
	return r.register(func(id uint64) {
		m := r.handlers[label]
		if m == nil {
			m = make(map[uint64]MessageHandler)
			r.handlers[label] = m
		}
		m[id] = h
	}, func(id uint64) {
		delete(r.handlers[label], id)
		if len(r.handlers[label]) == 0 {
			delete(r.handlers, label)
		}
	})
}

// OnNotice implements Conn.
func (r *Router) OnNotice(fn func(notice string)) (remove func()) {
	return r.register(func(id uint64) {
		r.notices[id] = fn
	}, func(id uint64) {
		delete(r.notices, id)
	})
}

// OnDisconnect implements Conn. If the connection is already closed, fn is
// called right away.
func (r *Router) OnDisconnect(fn func()) (remove func()) {
	r.mu.Lock()
	if r.disconnected {
		r.mu.Unlock()
		fn()
		return func() {}
	}
	r.mu.Unlock()
	return r.register(func(id uint64) {
		r.disconnects[id] = fn
	}, func(id uint64) {
		delete(r.disconnects, id)
	})
}

// NumHandlers returns the number of registered handlers, listeners included.
func (r *Router) NumHandlers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.notices) + len(r.disconnects)
	for _, m := range r.handlers {
		n += len(m)
	}
	return n
}

// Dispatch parses the message and passes it to the handlers registered for its label.
// Handlers are called without holding the lock, so they may add or remove registrations.
func (r *Router) Dispatch(data []byte) error {
	label, elems, err := ParseMessage(data)
	if err != nil {
		return err
	}
	if label == LabelNotice {
		text, _ := stringAt(elems, 1)
		r.mu.Lock()
		fns := make([]func(string), 0, len(r.notices))
		for _, fn := range r.notices {
			fns = append(fns, fn)
		}
		r.mu.Unlock()
		r.logger.Debug("notice", zap.String("text", text))
		for _, fn := range fns {
			fn(text)
		}
		return nil
	}
	r.mu.Lock()
	hs := make([]MessageHandler, 0, len(r.handlers[label]))
	for _, h := range r.handlers[label] {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	if len(hs) == 0 {
		r.logger.Debug("no handlers for message", zap.String("label", label))
	}
	for _, h := range hs {
		h(elems)
	}
	return nil
}

// Disconnected notifies the disconnect listeners. Only the first call has any effect.
func (r *Router) Disconnected() {
	r.mu.Lock()
	if r.disconnected {
		r.mu.Unlock()
		return
	}
	r.disconnected = true
	fns := make([]func(), 0, len(r.disconnects))
	for _, fn := range r.disconnects {
		fns = append(fns, fn)
	}
	clear(r.disconnects)
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
