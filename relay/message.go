package relay

import (
	"encoding/json"
	"fmt"

	"github.com/nostrsync/negsync/negentropy"
)

const (
	LabelNegOpen  = "NEG-OPEN"
	LabelNegMsg   = "NEG-MSG"
	LabelNegErr   = "NEG-ERR"
	LabelNegClose = "NEG-CLOSE"
	LabelNotice   = "NOTICE"
)

func encode(elems ...any) []byte {
	b, err := json.Marshal(elems)
	if err != nil {
		panic("BUG: can't marshal relay message: " + err.Error())
	}
	return b
}

// EncodeNegOpen encodes a NEG-OPEN message.
func EncodeNegOpen(id string, filters json.RawMessage, msg []byte) []byte {
	if len(filters) == 0 {
		filters = json.RawMessage("{}")
	}
	return encode(LabelNegOpen, id, filters, negentropy.BytesToHex(msg))
}

// EncodeNegMsg encodes a NEG-MSG message.
func EncodeNegMsg(id string, msg []byte) []byte {
	return encode(LabelNegMsg, id, negentropy.BytesToHex(msg))
}

// EncodeNegErr encodes a NEG-ERR message.
func EncodeNegErr(id, reason string) []byte {
	return encode(LabelNegErr, id, reason)
}

// EncodeNegClose encodes a NEG-CLOSE message.
func EncodeNegClose(id string) []byte {
	return encode(LabelNegClose, id)
}

// EncodeNotice encodes a NOTICE message.
func EncodeNotice(text string) []byte {
	return encode(LabelNotice, text)
}

// ParseMessage splits a relay message into its elements and returns its label.
func ParseMessage(data []byte) (string, []json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return "", nil, fmt.Errorf("%w: not a JSON array: %w", ErrProtocolFormat, err)
	}
	if len(elems) == 0 {
		return "", nil, fmt.Errorf("%w: empty message", ErrProtocolFormat)
	}
	label, ok := stringAt(elems, 0)
	if !ok {
		return "", nil, fmt.Errorf("%w: message label is not a string", ErrProtocolFormat)
	}
	return label, elems, nil
}

// stringAt returns the string at index i of the message.
func stringAt(elems []json.RawMessage, i int) (string, bool) {
	if i >= len(elems) || len(elems[i]) == 0 || elems[i][0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(elems[i], &s); err != nil {
		return "", false
	}
	return s, true
}

// stringFields checks that the message has at least n elements and that
// the first n of them are strings, and returns them.
func stringFields(elems []json.RawMessage, n int) ([]string, error) {
	if len(elems) < n {
		return nil, fmt.Errorf("%w: expected at least %d elements, got %d",
			ErrProtocolFormat, n, len(elems))
	}
	r := make([]string, n)
	for i := range r {
		s, ok := stringAt(elems, i)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not a string", ErrProtocolFormat, i)
		}
		r[i] = s
	}
	return r, nil
}
