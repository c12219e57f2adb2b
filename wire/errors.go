package wire

import "errors"

// The error conditions this module names: a truncated frame, an unknown
// opcode, and a decompression failure.
var (
	ErrProtocolFrame     = errors.New("wire: truncated or malformed frame")
	ErrProtocolUnknownOp = errors.New("wire: unknown opcode")
	ErrProtocolCodec     = errors.New("wire: decompression failed")
)
