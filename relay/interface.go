package relay

import (
	"context"
	"encoding/json"

	"github.com/nostrsync/negsync/negentropy"
)

//go:generate mockgen -typed -package=relay -destination=./mocks.go -source=./interface.go

// MessageHandler handles an incoming relay message. The message is the whole
// JSON array, including the label.
type MessageHandler func(msg []json.RawMessage)

// Conn is a connection to a relay, or to a client on the relay side.
type Conn interface {
	// URL returns the URL of the relay.
	URL() string
	// Connected returns true if the connection is alive.
	Connected() bool
	// Send sends a raw message.
	Send(ctx context.Context, msg []byte) error
	// Handle registers a handler for messages with the specified label.
	// The returned function removes just this registration.
	Handle(label string, h MessageHandler) (remove func())
	// OnNotice registers a NOTICE listener.
	OnNotice(fn func(notice string)) (remove func())
	// OnDisconnect registers a listener that is called once the connection is closed.
	OnDisconnect(fn func()) (remove func())
}

// Reconciler is the reconciliation engine used by a Session.
type Reconciler interface {
	Initiate() ([]byte, error)
	Reconcile(query []byte) (negentropy.ReconcileResult, error)
}

// StorageProvider provides the responder with the items matching the filters of
// a NEG-OPEN request.
type StorageProvider interface {
	// OpenStorage returns the storage and the function that releases it.
	OpenStorage(ctx context.Context, filters json.RawMessage) (negentropy.Storage, func(), error)
}
