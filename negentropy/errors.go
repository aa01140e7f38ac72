package negentropy

import "errors"

var (
	// ErrBufferUnderrun is returned when a read needs more bytes than the buffer holds.
	ErrBufferUnderrun = errors.New("buffer underrun")
	// ErrVarIntOverflow is returned when a varint does not fit into 64 bits.
	ErrVarIntOverflow = errors.New("varint overflows uint64")
	// ErrProtocolFormat is returned for malformed protocol messages.
	ErrProtocolFormat = errors.New("malformed negentropy message")
	// ErrProtocolVersion is returned when the leading byte is not a negentropy
	// protocol version byte at all.
	ErrProtocolVersion = errors.New("invalid negentropy protocol version byte")
	// ErrUnsupportedVersion is returned to the initiator when the peer asks for a
	// protocol version other than V1.
	ErrUnsupportedVersion = errors.New("unsupported negentropy protocol version")
	// ErrOddHexLength is returned when decoding a hex string of odd length.
	ErrOddHexLength = errors.New("hex string has odd length")
	// ErrAlreadyInitiated is returned by Initiate when called more than once.
	ErrAlreadyInitiated = errors.New("already initiated")
	// ErrFrameSizeTooSmall is returned for a non-zero frame size limit below MinFrameSizeLimit.
	ErrFrameSizeTooSmall = errors.New("frame size limit too small")

	// ErrSealed is returned when inserting into a sealed storage.
	ErrSealed = errors.New("storage is sealed")
	// ErrNotSealed is returned when reading from storage that is not sealed yet.
	ErrNotSealed = errors.New("storage is not sealed")
	// ErrDuplicateItem is returned by Seal when the same item was inserted twice.
	ErrDuplicateItem = errors.New("duplicate item in storage")
	// ErrInvalidRange is returned for index ranges outside of the storage.
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidIDSize is returned for IDs that are not IDSize bytes long.
	ErrInvalidIDSize = errors.New("invalid ID size")
)
