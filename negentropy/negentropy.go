// Package negentropy implements the Negentropy (NIP-77) range-based set reconciliation
// protocol.
//
// Both sides keep their items sorted by (timestamp, id). The initiator sends fingerprints
// of the ranges covering its whole set, and each side then compares the ranges it
// receives against its own items: matching ranges are skipped, differing ranges are split
// into smaller ones, and small ranges are exchanged as explicit ID lists. The initiator
// collects the IDs it has that the peer lacks ("have") and the IDs the peer has that it
// lacks ("need"). The exchange converges in a logarithmic number of rounds.
package negentropy

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	// MinFrameSizeLimit is the smallest non-zero frame size limit.
	MinFrameSizeLimit = 4096

	// frameSizeMargin is the space reserved at the end of a size-capped message
	// for the trailing fingerprint record.
	frameSizeMargin = 200

	// numBuckets is the number of subranges a differing range is split into.
	numBuckets = 16
	// idListThreshold is the range size below which ranges are sent as ID lists.
	idListThreshold = numBuckets * 2
)

// Opt is an option for the Negentropy engine.
type Opt func(n *Negentropy)

// WithFrameSizeLimit limits the size of the messages produced by the engine.
// Zero means unlimited. Non-zero values below MinFrameSizeLimit are rejected by New.
func WithFrameSizeLimit(limit int) Opt {
	return func(n *Negentropy) {
		n.frameSizeLimit = limit
	}
}

// WithLogger specifies the logger for the engine.
func WithLogger(logger *zap.Logger) Opt {
	return func(n *Negentropy) {
		n.logger = logger
	}
}

// ReconcileResult is the outcome of processing a single message.
//
// Under a frame size limit the remainder of a reply is deferred as a single
// fingerprint, so a range can be reconciled again in a later round and an ID
// may be reported in Have or Need more than once over a sync. Accumulate the
// results into sets.
type ReconcileResult struct {
	// Next is the message to send to the peer. It is nil for the initiator when the
	// reconciliation is complete.
	Next []byte
	// Have lists the IDs the initiator has and the peer lacks.
	Have []ID
	// Need lists the IDs the peer has and the initiator lacks.
	Need []ID
}

// Negentropy is the reconciliation engine for one side of a single exchange.
// It is not safe for concurrent use.
type Negentropy struct {
	storage        Storage
	frameSizeLimit int
	logger         *zap.Logger
	isInitiator    bool
}

// New creates a Negentropy engine reconciling the contents of the storage.
func New(storage Storage, opts ...Opt) (*Negentropy, error) {
	n := &Negentropy{
		storage: storage,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.frameSizeLimit != 0 && n.frameSizeLimit < MinFrameSizeLimit {
		return nil, fmt.Errorf("%w: %d < %d", ErrFrameSizeTooSmall, n.frameSizeLimit, MinFrameSizeLimit)
	}
	return n, nil
}

// IsInitiator returns true if the engine is on the initiating side of the exchange.
func (n *Negentropy) IsInitiator() bool {
	return n.isInitiator
}

// SetInitiator marks the engine as the initiator without building the initial message.
// It is used when the initial message was built elsewhere.
func (n *Negentropy) SetInitiator() {
	n.isInitiator = true
}

// Initiate makes the engine the initiator and returns the initial message
// covering the whole local set.
func (n *Negentropy) Initiate() ([]byte, error) {
	if n.isInitiator {
		return nil, ErrAlreadyInitiated
	}
	n.isInitiator = true
	recs, err := n.splitRange(0, n.storage.Size(), InfiniteBound())
	if err != nil {
		return nil, fmt.Errorf("initiate: %w", err)
	}
	msg := Message{Version: ProtocolVersion, Records: recs}.Encode()
	n.logger.Debug("initiate",
		zap.Int("size", n.storage.Size()),
		zap.Int("records", len(recs)),
		zap.Int("msgSize", len(msg)))
	return msg, nil
}

// Reconcile processes a message received from the peer.
// The message is fully decoded before any processing, so a malformed message
// leaves the engine state intact.
func (n *Negentropy) Reconcile(query []byte) (ReconcileResult, error) {
	msg, err := DecodeMessage(query)
	switch {
	case errors.Is(err, ErrUnsupportedVersion) && !n.isInitiator:
		n.logger.Debug("peer requested unsupported protocol version, advertising V1",
			zap.Error(err))
		return ReconcileResult{Next: []byte{ProtocolVersion}}, nil
	case err != nil:
		return ReconcileResult{}, err
	}
	return n.reconcile(msg)
}

func (n *Negentropy) exceedsLimit(size int) bool {
	return n.frameSizeLimit != 0 && size > n.frameSizeLimit-frameSizeMargin
}

func (n *Negentropy) reconcile(msg Message) (ReconcileResult, error) {
	var (
		res       ReconcileResult
		enc       boundEncoder
		prevBound Bound
		prevIndex int
		skip      bool
	)
	out := NewBuffer()
	out.Append([]byte{ProtocolVersion})
	size := n.storage.Size()
	// o holds the records produced for the current incoming record.
	var o []Record
	flushSkip := func() {
		if skip {
			skip = false
			o = append(o, Record{Bound: prevBound, Payload: Skip{}})
		}
	}
	for _, r := range msg.Records {
		o = o[:0]
		snapshot, encSnapshot, skipSnapshot := out.Len(), enc, skip
		lower := prevIndex
		upper, err := n.storage.FindLowerBound(prevIndex, size, r.Bound)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("find lower bound: %w", err)
		}
		truncated := -1
		switch p := r.Payload.(type) {
		case Skip:
			skip = true
		case FingerprintPayload:
			fp, err := n.storage.Fingerprint(lower, upper)
			if err != nil {
				return ReconcileResult{}, fmt.Errorf("fingerprint: %w", err)
			}
			if fp == p.Fingerprint {
				skip = true
				break
			}
			flushSkip()
			recs, err := n.splitRange(lower, upper, r.Bound)
			if err != nil {
				return ReconcileResult{}, err
			}
			o = append(o, recs...)
		case IDListPayload:
			if n.isInitiator {
				if err := n.diffIDs(p.IDs, lower, upper, &res); err != nil {
					return ReconcileResult{}, err
				}
				skip = true
				break
			}
			flushSkip()
			rec, idx, err := n.responseIDList(out.Len(), lower, upper, r.Bound)
			if err != nil {
				return ReconcileResult{}, err
			}
			o = append(o, rec)
			truncated = idx
		default:
			panic(fmt.Sprintf("BUG: unexpected payload type %T", r.Payload))
		}
		for _, rec := range o {
			enc.appendRecord(out, rec)
		}
		switch {
		case truncated > lower:
			// The ID list ends at the first item that didn't fit.
			fp, err := n.storage.Fingerprint(truncated, size)
			if err != nil {
				return ReconcileResult{}, fmt.Errorf("fingerprint: %w", err)
			}
			enc.appendRecord(out, Record{Bound: InfiniteBound(), Payload: FingerprintPayload{fp}})
		case truncated >= 0 || n.exceedsLimit(out.Len()):
			// Drop the output for this range and summarize everything
			// from its start to the end of the universe.
			out.truncate(snapshot)
			enc, skip = encSnapshot, skipSnapshot
			o = o[:0]
			flushSkip()
			fp, err := n.storage.Fingerprint(lower, size)
			if err != nil {
				return ReconcileResult{}, fmt.Errorf("fingerprint: %w", err)
			}
			o = append(o, Record{Bound: InfiniteBound(), Payload: FingerprintPayload{fp}})
			for _, rec := range o {
				enc.appendRecord(out, rec)
			}
		default:
			prevIndex = upper
			prevBound = r.Bound
			continue
		}
		n.logger.Debug("frame size limit reached",
			zap.Int("limit", n.frameSizeLimit),
			zap.Int("msgSize", out.Len()))
		break
	}

	if !n.isInitiator || out.Len() != 1 {
		res.Next = append([]byte(nil), out.Unwrap()...)
	}
	n.logger.Debug("reconcile",
		zap.Bool("initiator", n.isInitiator),
		zap.Int("records", len(msg.Records)),
		zap.Int("have", len(res.Have)),
		zap.Int("need", len(res.Need)),
		zap.Int("replySize", len(res.Next)))
	return res, nil
}

// diffIDs compares the IDs received from the peer against the local items in
// [lower, upper) and records the differences in res.
func (n *Negentropy) diffIDs(theirs []ID, lower, upper int, res *ReconcileResult) error {
	peer := make(map[ID]struct{}, len(theirs))
	for _, id := range theirs {
		peer[id] = struct{}{}
	}
	if err := n.storage.Iterate(lower, upper, func(it Item, _ int) bool {
		if _, found := peer[it.ID]; found {
			delete(peer, it.ID)
		} else {
			res.Have = append(res.Have, it.ID)
		}
		return true
	}); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	for _, id := range theirs {
		if _, found := peer[id]; found {
			res.Need = append(res.Need, id)
			delete(peer, id)
		}
	}
	return nil
}

// responseIDList builds the responder's ID list for [lower, upper). If the frame size
// limit doesn't allow sending all of the IDs, the list is cut at the first item that
// doesn't fit, the record ends at that item and its index is returned. Otherwise the
// returned index is -1.
func (n *Negentropy) responseIDList(outLen, lower, upper int, bound Bound) (Record, int, error) {
	var ids []ID
	truncated := -1
	if err := n.storage.Iterate(lower, upper, func(it Item, i int) bool {
		if n.exceedsLimit(outLen + IDSize*(len(ids)+1)) {
			bound = ItemBound(it)
			truncated = i
			return false
		}
		ids = append(ids, it.ID)
		return true
	}); err != nil {
		return Record{}, -1, fmt.Errorf("iterate: %w", err)
	}
	return Record{Bound: bound, Payload: IDListPayload{IDs: ids}}, truncated, nil
}

// splitRange describes the items in [lower, upper) ending at upperBound. Small ranges
// are sent as an ID list, larger ones are split into numBuckets fingerprinted
// subranges.
func (n *Negentropy) splitRange(lower, upper int, upperBound Bound) ([]Record, error) {
	numElems := upper - lower
	if numElems < idListThreshold {
		ids := make([]ID, 0, numElems)
		if err := n.storage.Iterate(lower, upper, func(it Item, _ int) bool {
			ids = append(ids, it.ID)
			return true
		}); err != nil {
			return nil, fmt.Errorf("iterate: %w", err)
		}
		return []Record{{Bound: upperBound, Payload: IDListPayload{IDs: ids}}}, nil
	}

	itemsPerBucket := numElems / numBuckets
	bucketsWithExtra := numElems % numBuckets
	recs := make([]Record, 0, numBuckets)
	curr := lower
	for i := range numBuckets {
		bucketSize := itemsPerBucket
		if i < bucketsWithExtra {
			bucketSize++
		}
		fp, err := n.storage.Fingerprint(curr, curr+bucketSize)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: %w", err)
		}
		curr += bucketSize
		var next Bound
		if curr == upper {
			next = upperBound
		} else {
			prevItem, err := n.storage.Item(curr - 1)
			if err != nil {
				return nil, err
			}
			currItem, err := n.storage.Item(curr)
			if err != nil {
				return nil, err
			}
			next = minimalBound(prevItem, currItem)
		}
		recs = append(recs, Record{Bound: next, Payload: FingerprintPayload{fp}})
	}
	return recs, nil
}
