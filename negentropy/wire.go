package negentropy

import (
	"bytes"
	"cmp"
	"fmt"
	"math/bits"
)

const (
	// ProtocolVersion is the version byte of negentropy protocol V1.
	ProtocolVersion byte = 0x61

	minProtocolVersion byte = 0x60
	maxProtocolVersion byte = 0x6f
)

// Mode is the wire tag of a range record.
type Mode uint64

const (
	// ModeSkip denotes a range that needs no further processing.
	ModeSkip Mode = iota
	// ModeFingerprint denotes a range summarized by its fingerprint.
	ModeFingerprint
	// ModeIDList denotes a range with all of its IDs listed explicitly.
	ModeIDList
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeSkip:
		return "skip"
	case ModeFingerprint:
		return "fingerprint"
	case ModeIDList:
		return "idlist"
	default:
		return fmt.Sprintf("<unknown mode %d>", uint64(m))
	}
}

// Payload is the content of a range record. The set of payloads is closed:
// Skip, FingerprintPayload and IDListPayload.
type Payload interface {
	Mode() Mode
	isPayload()
}

// Skip means there's nothing more to report for the range.
type Skip struct{}

var _ Payload = Skip{}

func (Skip) Mode() Mode { return ModeSkip }
func (Skip) isPayload() {}

// FingerprintPayload carries the fingerprint of the range.
type FingerprintPayload struct {
	Fingerprint Fingerprint
}

var _ Payload = FingerprintPayload{}

func (FingerprintPayload) Mode() Mode { return ModeFingerprint }
func (FingerprintPayload) isPayload() {}

// IDListPayload lists all the IDs in the range.
type IDListPayload struct {
	IDs []ID
}

var _ Payload = IDListPayload{}

func (IDListPayload) Mode() Mode { return ModeIDList }
func (IDListPayload) isPayload() {}

// Record is a single range of a message, ending at Bound. The range starts at the bound
// of the previous record, or at the beginning of the universe for the first record.
type Record struct {
	Bound   Bound
	Payload Payload
}

// String implements fmt.Stringer.
func (r Record) String() string {
	switch p := r.Payload.(type) {
	case FingerprintPayload:
		return fmt.Sprintf("<%s %s %s>", r.Bound, ModeFingerprint, p.Fingerprint)
	case IDListPayload:
		return fmt.Sprintf("<%s %s n=%d>", r.Bound, ModeIDList, len(p.IDs))
	default:
		return fmt.Sprintf("<%s %s>", r.Bound, r.Payload.Mode())
	}
}

// Message is a decoded negentropy protocol message.
type Message struct {
	Version byte
	Records []Record
}

// Encode serializes the message.
func (m Message) Encode() []byte {
	buf := NewBuffer()
	buf.Append([]byte{m.Version})
	var enc boundEncoder
	for _, r := range m.Records {
		enc.appendRecord(buf, r)
	}
	return buf.Unwrap()
}

// DecodeMessage parses a negentropy message. If the message carries a valid protocol
// version byte other than ProtocolVersion, the returned error wraps ErrUnsupportedVersion
// and the message contains just the version.
func DecodeMessage(data []byte) (Message, error) {
	buf := NewBufferFrom(data)
	v, err := buf.Shift()
	if err != nil {
		return Message{}, fmt.Errorf("%w: reading protocol version", err)
	}
	if v < minProtocolVersion || v > maxProtocolVersion {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrProtocolVersion, v)
	}
	msg := Message{Version: v}
	if v != ProtocolVersion {
		return msg, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v-minProtocolVersion)
	}
	var (
		dec  boundDecoder
		prev *Bound
	)
	for buf.Len() != 0 {
		r, err := dec.decodeRecord(buf)
		if err != nil {
			return Message{}, fmt.Errorf("record %d: %w", len(msg.Records), err)
		}
		if prev != nil && compareBounds(*prev, r.Bound) >= 0 {
			return Message{}, fmt.Errorf("%w: record %d: bound %s doesn't follow %s",
				ErrProtocolFormat, len(msg.Records), r.Bound, *prev)
		}
		msg.Records = append(msg.Records, r)
		prev = &msg.Records[len(msg.Records)-1].Bound
	}
	return msg, nil
}

// compareBounds compares two bounds, treating prefixes as zero-padded to IDSize.
func compareBounds(a, b Bound) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	var pa, pb [IDSize]byte
	copy(pa[:], a.Prefix)
	copy(pb[:], b.Prefix)
	return bytes.Compare(pa[:], pb[:])
}

// boundEncoder encodes bounds with timestamps delta-encoded against the previous
// bound of the same message.
type boundEncoder struct {
	lastTimestamp uint64
}

func (e *boundEncoder) appendTimestamp(buf *Buffer, ts uint64) {
	if ts == MaxTimestamp {
		e.lastTimestamp = MaxTimestamp
		buf.Append(EncodeVarInt(0))
		return
	}
	delta := ts - e.lastTimestamp
	e.lastTimestamp = ts
	buf.Append(EncodeVarInt(delta + 1))
}

func (e *boundEncoder) appendBound(buf *Buffer, b Bound) {
	e.appendTimestamp(buf, b.Timestamp)
	buf.Append(EncodeVarInt(uint64(len(b.Prefix))))
	buf.Append(b.Prefix)
}

func (e *boundEncoder) appendRecord(buf *Buffer, r Record) {
	e.appendBound(buf, r.Bound)
	buf.Append(EncodeVarInt(uint64(r.Payload.Mode())))
	switch p := r.Payload.(type) {
	case Skip:
	case FingerprintPayload:
		buf.Append(p.Fingerprint[:])
	case IDListPayload:
		buf.Append(EncodeVarInt(uint64(len(p.IDs))))
		for _, id := range p.IDs {
			buf.Append(id[:])
		}
	default:
		panic(fmt.Sprintf("BUG: unexpected payload type %T", r.Payload))
	}
}

type boundDecoder struct {
	lastTimestamp uint64
}

func (d *boundDecoder) decodeTimestamp(buf *Buffer) (uint64, error) {
	v, err := DecodeVarInt(buf)
	if err != nil {
		return 0, fmt.Errorf("timestamp: %w", err)
	}
	if v == 0 || d.lastTimestamp == MaxTimestamp {
		d.lastTimestamp = MaxTimestamp
		return MaxTimestamp, nil
	}
	ts, carry := bits.Add64(v-1, d.lastTimestamp, 0)
	if carry != 0 || ts == MaxTimestamp {
		return 0, fmt.Errorf("%w: timestamp overflow", ErrProtocolFormat)
	}
	d.lastTimestamp = ts
	return ts, nil
}

func (d *boundDecoder) decodeBound(buf *Buffer) (Bound, error) {
	ts, err := d.decodeTimestamp(buf)
	if err != nil {
		return Bound{}, err
	}
	n, err := DecodeVarInt(buf)
	if err != nil {
		return Bound{}, fmt.Errorf("bound prefix length: %w", err)
	}
	if n > IDSize {
		return Bound{}, fmt.Errorf("%w: bound key too long (%d bytes)", ErrProtocolFormat, n)
	}
	prefix, err := buf.ShiftN(int(n))
	if err != nil {
		return Bound{}, fmt.Errorf("bound prefix: %w", err)
	}
	return Bound{Timestamp: ts, Prefix: append([]byte(nil), prefix...)}, nil
}

func (d *boundDecoder) decodeRecord(buf *Buffer) (Record, error) {
	b, err := d.decodeBound(buf)
	if err != nil {
		return Record{}, err
	}
	m, err := DecodeVarInt(buf)
	if err != nil {
		return Record{}, fmt.Errorf("mode: %w", err)
	}
	r := Record{Bound: b}
	switch Mode(m) {
	case ModeSkip:
		r.Payload = Skip{}
	case ModeFingerprint:
		fp, err := buf.ShiftN(FingerprintSize)
		if err != nil {
			return Record{}, fmt.Errorf("fingerprint: %w", err)
		}
		var p FingerprintPayload
		copy(p.Fingerprint[:], fp)
		r.Payload = p
	case ModeIDList:
		n, err := DecodeVarInt(buf)
		if err != nil {
			return Record{}, fmt.Errorf("id count: %w", err)
		}
		if n > uint64(buf.Len()/IDSize) {
			return Record{}, fmt.Errorf("%w: id list of %d items in %d bytes",
				ErrBufferUnderrun, n, buf.Len())
		}
		p := IDListPayload{IDs: make([]ID, n)}
		for i := range p.IDs {
			b, err := buf.ShiftN(IDSize)
			if err != nil {
				return Record{}, fmt.Errorf("id %d: %w", i, err)
			}
			copy(p.IDs[i][:], b)
		}
		r.Payload = p
	default:
		return Record{}, fmt.Errorf("%w: unexpected mode %d", ErrProtocolFormat, m)
	}
	return r, nil
}
