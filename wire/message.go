// Package wire implements MongoDB Wire Protocol framing: OP_MSG/OP_QUERY
// request construction, OP_REPLY/OP_MSG response parsing, and OP_COMPRESSED
// wrapping/unwrapping. Grounded on core/connection/connection.go's
// WriteWireMessage/ReadWireMessage and compressMessage/uncompressMessage,
// adapted from raw bsoncore byte-appends to the pack.Pack abstraction
// so this package never assumes BSON.
package wire

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/corewire/mongodrv/pack"
)

const headerLength = 16

// Header is the little-endian (length, requestID, responseTo, opCode)
// prefix every wire message carries, by design
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

var requestIDCounter int32

// NextRequestID returns a strictly monotonic 32-bit request id. Wrap-
// around past MaxInt32 is not a correctness concern in practice: the
// server only needs uniqueness among outstanding requests.
func NextRequestID() int32 {
	return atomic.AddInt32(&requestIDCounter, 1)
}

func appendHeader(dst []byte, h Header) []byte {
	var buf [headerLength]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.MessageLength))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.RequestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.ResponseTo))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.OpCode))
	return append(dst, buf[:]...)
}

// ReadHeader parses a message header and returns the bytes following it.
func ReadHeader(wm []byte) (Header, []byte, error) {
	if len(wm) < headerLength {
		return Header{}, nil, ErrProtocolFrame
	}
	h := Header{
		MessageLength: int32(binary.LittleEndian.Uint32(wm[0:4])),
		RequestID:     int32(binary.LittleEndian.Uint32(wm[4:8])),
		ResponseTo:    int32(binary.LittleEndian.Uint32(wm[8:12])),
		OpCode:        OpCode(binary.LittleEndian.Uint32(wm[12:16])),
	}
	if int(h.MessageLength) > len(wm) || h.MessageLength < headerLength {
		return Header{}, nil, ErrProtocolFrame
	}
	return h, wm[headerLength:int(h.MessageLength)], nil
}

func setLength(wm []byte) []byte {
	binary.LittleEndian.PutUint32(wm[0:4], uint32(len(wm)))
	return wm
}

// BuildOpMsg constructs an OP_MSG frame around a single document section
// (section kind 0), the form this core always uses: commands never need
// the document-sequence (kind 1) section for requests. Used for wire
// version >= 6 by design
func BuildOpMsg(pk pack.Pack, body pack.Value, requestID int32) ([]byte, error) {
	bodyBytes, err := pk.Encode(body)
	if err != nil {
		return nil, err
	}

	wm := make([]byte, headerLength, headerLength+4+1+len(bodyBytes))
	wm = appendHeader(wm[:0], Header{RequestID: requestID, OpCode: OpMsg})
	wm = binary.LittleEndian.AppendUint32(wm, 0) // flagBits
	wm = append(wm, 0)                           // section kind 0: body
	wm = append(wm, bodyBytes...)
	return setLength(wm), nil
}

// BuildOpQuery constructs a legacy OP_QUERY frame targeting "<db>.$cmd",
// used for wire versions below 6 by design
func BuildOpQuery(pk pack.Pack, db string, body pack.Value, requestID int32) ([]byte, error) {
	bodyBytes, err := pk.Encode(body)
	if err != nil {
		return nil, err
	}

	fullCollectionName := db + ".$cmd"
	wm := make([]byte, headerLength, headerLength+4+len(fullCollectionName)+1+8+len(bodyBytes))
	wm = appendHeader(wm[:0], Header{RequestID: requestID, OpCode: OpQuery})
	wm = binary.LittleEndian.AppendUint32(wm, 0) // flags
	wm = append(wm, fullCollectionName...)
	wm = append(wm, 0x00)
	wm = binary.LittleEndian.AppendUint32(wm, 0)          // numberToSkip
	wm = binary.LittleEndian.AppendUint32(wm, 0xFFFFFFFF) // numberToReturn = -1
	wm = append(wm, bodyBytes...)
	return setLength(wm), nil
}

// CompressBody wraps the portion of a wire message after its header in an
// OP_COMPRESSED frame. Grounded on core/connection/connection.go's
// compressMessage, which strips the original header and resends the
// compressed payload tagged with the original opcode so the peer can
// reconstruct it.
func CompressBody(original []byte, c Compressor) ([]byte, error) {
	h, body, err := ReadHeader(original)
	if err != nil {
		return nil, err
	}

	compressed, err := c.Compress(nil, body)
	if err != nil {
		return nil, err
	}

	wm := make([]byte, headerLength, headerLength+4+4+1+len(compressed))
	wm = appendHeader(wm[:0], Header{RequestID: h.RequestID, ResponseTo: h.ResponseTo, OpCode: OpCompressed})
	wm = binary.LittleEndian.AppendUint32(wm, uint32(h.OpCode))
	wm = binary.LittleEndian.AppendUint32(wm, uint32(len(body)))
	wm = append(wm, byte(c.ID()))
	wm = append(wm, compressed...)
	return setLength(wm), nil
}

// decompress unwraps an OP_COMPRESSED frame's remainder (as returned by
// ReadHeader) into the original opcode and uncompressed body bytes.
func decompress(rest []byte, compressors map[CompressorID]Compressor) (OpCode, []byte, error) {
	if len(rest) < 9 {
		return 0, nil, ErrProtocolFrame
	}
	origOpcode := OpCode(binary.LittleEndian.Uint32(rest[0:4]))
	uncompressedSize := binary.LittleEndian.Uint32(rest[4:8])
	compressorID := CompressorID(rest[8])
	compressedBody := rest[9:]

	c, ok := compressors[compressorID]
	if !ok {
		return 0, nil, ErrProtocolCodec
	}

	body, err := c.Decompress(make([]byte, 0, uncompressedSize), compressedBody)
	if err != nil {
		return 0, nil, err
	}
	return origOpcode, body, nil
}

// Reply is a decoded command response: the reply header and the first
// document. The legacy OP_REPLY cursor fields are skipped, not kept.
type Reply struct {
	Header   Header
	Document pack.Value
}

// ParseReply decodes a full wire message (header included) into a Reply,
// transparently unwrapping OP_COMPRESSED. Grounded on
// x/mongo/driverx/driver.go's decodeResult.
func ParseReply(pk pack.Pack, wm []byte, compressors map[CompressorID]Compressor) (Reply, error) {
	h, rest, err := ReadHeader(wm)
	if err != nil {
		return Reply{}, err
	}

	opcode := h.OpCode
	if opcode == OpCompressed {
		origOpcode, body, err := decompress(rest, compressors)
		if err != nil {
			return Reply{}, err
		}
		opcode = origOpcode
		rest = body
	}

	switch opcode {
	case OpReply:
		return parseOpReply(pk, h, rest)
	case OpMsg:
		return parseOpMsgBody(pk, h, rest)
	default:
		return Reply{}, ErrProtocolUnknownOp
	}
}

func parseOpReply(pk pack.Pack, h Header, body []byte) (Reply, error) {
	// responseFlags(4) cursorID(8) startingFrom(4) numberReturned(4) then docs
	if len(body) < 20 {
		return Reply{}, ErrProtocolFrame
	}
	docBytes := body[20:]
	doc, err := pk.Decode(docBytes)
	if err != nil {
		return Reply{}, ErrProtocolFrame
	}
	return Reply{Header: h, Document: doc}, nil
}

func parseOpMsgBody(pk pack.Pack, h Header, body []byte) (Reply, error) {
	// flagBits(4) then one or more sections.
	if len(body) < 4 {
		return Reply{}, ErrProtocolFrame
	}
	rest := body[4:]

	for len(rest) > 0 {
		kind := rest[0]
		rest = rest[1:]
		switch kind {
		case 0:
			doc, err := pk.Decode(rest)
			if err != nil {
				return Reply{}, ErrProtocolFrame
			}
			return Reply{Header: h, Document: doc}, nil
		case 1:
			if len(rest) < 4 {
				return Reply{}, ErrProtocolFrame
			}
			size := binary.LittleEndian.Uint32(rest[0:4])
			if int(size) > len(rest) {
				return Reply{}, ErrProtocolFrame
			}
			rest = rest[size:]
		default:
			return Reply{}, ErrProtocolUnknownOp
		}
	}
	return Reply{}, ErrProtocolFrame
}
