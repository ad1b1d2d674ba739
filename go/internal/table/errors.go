package table

import "errors"

var (
	// ErrNotConnected is returned when a frame is sent while the
	// connection is not in the connected state.
	ErrNotConnected = errors.New("not connected")

	// ErrSendBufferFull is returned when the write pump cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrClientClosed is returned by commands issued after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrUnknownCard is returned when a card id is not in the local hand
	// or on the table.
	ErrUnknownCard = errors.New("unknown card")

	// ErrMalformedFrame wraps decode failures of inbound frames.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownMessage is returned for frames with an unrecognized type.
	ErrUnknownMessage = errors.New("unknown message type")
)
