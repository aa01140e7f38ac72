package wsconn

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/nip11"
	"github.com/nostrsync/negsync/relay"
)

// Handler serves negentropy sync to websocket clients. Plain HTTP requests for
// the relay information document get the configured Info.
type Handler struct {
	responder *relay.Responder
	info      *nip11.Info
	upgrader  websocket.Upgrader
	opts      options
}

// NewHandler creates a Handler.
func NewHandler(responder *relay.Responder, info *nip11.Info, opts ...Opt) *Handler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Handler{
		responder: responder,
		info:      info,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts: o,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		if h.info != nil && strings.Contains(r.Header.Get("Accept"), nip11.ContentType) {
			w.Header().Set("Content-Type", nip11.ContentType)
			w.Header().Set("Access-Control-Allow-Origin", "*")
			if err := json.NewEncoder(w).Encode(h.info); err != nil {
				h.opts.logger.Debug("failed to write relay info", zap.Error(err))
			}
			return
		}
		http.Error(w, "use a websocket client", http.StatusUpgradeRequired)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		h.opts.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := newConn(r.RemoteAddr, ws, h.opts)
	detach := h.responder.Attach(c)
	defer detach()
	c.logger.Debug("client connected")
	c.readLoop()
	c.logger.Debug("client disconnected")
}
