// Package multirelay reconciles the local item set against multiple relays at once.
package multirelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nostrsync/negsync/negentropy"
	"github.com/nostrsync/negsync/relay"
)

// ErrNoRelays is returned when there are no relays to sync with.
var ErrNoRelays = errors.New("no relays available for sync")

// Status is the outcome of syncing with a single relay.
type Status int

const (
	StatusSynced Status = iota
	// StatusSkipped means the relay was not connected.
	StatusSkipped
	// StatusUnsupported means the relay doesn't support negentropy.
	StatusUnsupported
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusSkipped:
		return "skipped"
	case StatusUnsupported:
		return "unsupported"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("<unknown status %d>", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RelayOutcome describes the sync against a single relay.
type RelayOutcome struct {
	URL      string        `json:"url"`
	Status   Status        `json:"status"`
	Need     int           `json:"need"`
	Have     int           `json:"have"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Report is the aggregated result of syncing with multiple relays.
type Report struct {
	relay.Result
	Relays []RelayOutcome `json:"relays"`
}

type SyncerOpt func(s *Syncer)

// WithLogger specifies the logger for the Syncer.
func WithLogger(logger *zap.Logger) SyncerOpt {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// WithFrameSizeLimit sets the frame size limit of the negentropy messages.
func WithFrameSizeLimit(limit int) SyncerOpt {
	return func(s *Syncer) {
		s.frameSizeLimit = limit
	}
}

// WithSessionTimeout limits the duration of each relay session.
func WithSessionTimeout(d time.Duration) SyncerOpt {
	return func(s *Syncer) {
		s.timeout = d
	}
}

// WithMaxConcurrency limits the number of relays synced at the same time.
// Zero means no limit.
func WithMaxConcurrency(n int) SyncerOpt {
	return func(s *Syncer) {
		s.maxConcurrency = n
	}
}

// WithCapabilityChecker makes the Syncer skip relays that don't advertise
// negentropy support.
func WithCapabilityChecker(checker CapabilityChecker) SyncerOpt {
	return func(s *Syncer) {
		s.checker = checker
	}
}

// WithOnRelayError specifies the callback invoked for each relay that fails.
func WithOnRelayError(fn func(relayURL string, err error)) SyncerOpt {
	return func(s *Syncer) {
		s.onRelayError = fn
	}
}

// WithClock specifies the clock used for the session timeouts.
func WithClock(clock clockwork.Clock) SyncerOpt {
	return func(s *Syncer) {
		s.clock = clock
	}
}

// Syncer runs negentropy sessions against multiple relays concurrently.
// Failure of a single relay doesn't fail the whole sync.
type Syncer struct {
	provider       relay.StorageProvider
	logger         *zap.Logger
	frameSizeLimit int
	timeout        time.Duration
	maxConcurrency int
	checker        CapabilityChecker
	onRelayError   func(relayURL string, err error)
	clock          clockwork.Clock
}

// NewSyncer creates a Syncer which takes the local items from the provider.
func NewSyncer(provider relay.StorageProvider, opts ...SyncerOpt) *Syncer {
	s := &Syncer{
		provider: provider,
		logger:   zap.NewNop(),
		timeout:  relay.DefaultSessionTimeout,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reconciles the items matching the filters with all the relays.
// The returned report holds the union of need and have IDs across the relays
// and the outcome for each relay, in the order of conns.
func (s *Syncer) Sync(ctx context.Context, conns []relay.Conn, filters json.RawMessage) (Report, error) {
	if len(conns) == 0 {
		return Report{}, ErrNoRelays
	}
	var (
		mu     sync.Mutex
		result = relay.NewResult()
		eg     errgroup.Group
	)
	outcomes := make([]RelayOutcome, len(conns))
	if s.maxConcurrency > 0 {
		eg.SetLimit(s.maxConcurrency)
	}
	for i, conn := range conns {
		eg.Go(func() error {
			start := s.clock.Now()
			res, outcome := s.syncRelay(ctx, conn, filters)
			outcome.Duration = s.clock.Since(start)
			outcomes[i] = outcome
			if outcome.Status == StatusSynced {
				mu.Lock()
				result.Merge(res)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	for _, o := range outcomes {
		relayOutcomes.WithLabelValues(o.Status.String()).Inc()
	}
	s.logger.Info("sync complete",
		zap.Int("relays", len(conns)),
		zap.Int("need", result.Need.Len()),
		zap.Int("have", result.Have.Len()))
	return Report{Result: result, Relays: outcomes}, nil
}

func (s *Syncer) syncRelay(ctx context.Context, conn relay.Conn, filters json.RawMessage) (relay.Result, RelayOutcome) {
	url := conn.URL()
	logger := s.logger.With(zap.String("relay", url))
	outcome := RelayOutcome{URL: url}
	if !conn.Connected() {
		logger.Warn("relay not connected, skipping")
		outcome.Status = StatusSkipped
		outcome.Err = fmt.Errorf("%w: %s", relay.ErrNotConnected, url)
		return relay.Result{}, outcome
	}
	if s.checker != nil {
		if cp := s.checker.Check(ctx, url); !cp.Supported {
			logger.Info("relay doesn't advertise negentropy support, skipping",
				zap.String("error", cp.Error))
			outcome.Status = StatusUnsupported
			outcome.Err = fmt.Errorf("%w: %s", relay.ErrRelayUnsupported, url)
			return relay.Result{}, outcome
		}
	}
	res, err := s.runSession(ctx, conn, filters, logger)
	switch {
	case err == nil:
		outcome.Status = StatusSynced
		outcome.Need = res.Need.Len()
		outcome.Have = res.Have.Len()
		logger.Debug("relay synced", zap.Int("need", outcome.Need), zap.Int("have", outcome.Have))
		return res, outcome
	case errors.Is(err, relay.ErrRelayUnsupported):
		outcome.Status = StatusUnsupported
	default:
		outcome.Status = StatusFailed
	}
	outcome.Err = err
	if ctx.Err() == nil {
		// failing to sync against a particular relay is not considered
		// a fatal sync failure, so we just log the error
		logger.Error("failed to sync with relay", zap.Error(err))
		if s.onRelayError != nil {
			s.onRelayError(url, err)
		}
	}
	return relay.Result{}, outcome
}

func (s *Syncer) runSession(
	ctx context.Context,
	conn relay.Conn,
	filters json.RawMessage,
	logger *zap.Logger,
) (relay.Result, error) {
	storage, release, err := s.provider.OpenStorage(ctx, filters)
	if err != nil {
		return relay.Result{}, fmt.Errorf("open local storage: %w", err)
	}
	defer release()
	neg, err := negentropy.New(storage,
		negentropy.WithFrameSizeLimit(s.frameSizeLimit),
		negentropy.WithLogger(logger))
	if err != nil {
		return relay.Result{}, err
	}
	session := relay.NewSession(conn, filters, neg,
		relay.WithSessionTimeout(s.timeout),
		relay.WithSessionLogger(logger),
		relay.WithClock(s.clock))
	return session.Run(ctx)
}
