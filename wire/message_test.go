package wire_test

import (
	"testing"

	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/pack/bsonpack"
	"github.com/corewire/mongodrv/wire"
)

func TestNextRequestIDMonotonic(t *testing.T) {
	a := wire.NextRequestID()
	b := wire.NextRequestID()
	if b <= a {
		t.Fatalf("expected strictly increasing request ids, got %d then %d", a, b)
	}
}

func TestBuildOpMsgRoundTrip(t *testing.T) {
	p := bsonpack.New()
	cmd := p.MakeDocument(
		p.ElementProducer("ping", p.Int32(1)),
	)

	wm, err := wire.BuildOpMsg(p, cmd, wire.NextRequestID())
	if err != nil {
		t.Fatalf("BuildOpMsg: %v", err)
	}

	h, rest, err := wire.ReadHeader(wm)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.OpCode != wire.OpMsg {
		t.Fatalf("expected OP_MSG, got %s", h.OpCode)
	}
	if len(rest) == 0 {
		t.Fatalf("expected non-empty body after header")
	}
}

func TestBuildOpQueryShape(t *testing.T) {
	p := bsonpack.New()
	cmd := p.MakeDocument(p.ElementProducer("ismaster", p.Int32(1)))

	wm, err := wire.BuildOpQuery(p, "admin", cmd, wire.NextRequestID())
	if err != nil {
		t.Fatalf("BuildOpQuery: %v", err)
	}

	h, _, err := wire.ReadHeader(wm)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.OpCode != wire.OpQuery {
		t.Fatalf("expected OP_QUERY, got %s", h.OpCode)
	}
}

// serverReply builds a fake OP_MSG server response carrying the given
// document, as if it had arrived over a socket.
func serverReply(t *testing.T, p pack.Pack, doc pack.Value, responseTo int32) []byte {
	t.Helper()
	wm, err := wire.BuildOpMsg(p, doc, wire.NextRequestID())
	if err != nil {
		t.Fatalf("BuildOpMsg: %v", err)
	}
	h, body, err := wire.ReadHeader(wm)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	h.ResponseTo = responseTo
	out := make([]byte, 0, len(wm))
	out = append(out, wm[:16]...)
	_ = h
	// Patch responseTo in place (bytes 8:12) since appendHeader isn't
	// exported for reuse here.
	out[8] = byte(responseTo)
	out[9] = byte(responseTo >> 8)
	out[10] = byte(responseTo >> 16)
	out[11] = byte(responseTo >> 24)
	out = append(out, body...)
	return out
}

func TestParseReplyOpMsg(t *testing.T) {
	p := bsonpack.New()
	doc := p.MakeDocument(
		p.ElementProducer("ok", p.Double(1)),
	)

	wm := serverReply(t, p, doc, 42)

	reply, err := wire.ParseReply(p, wm, nil)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if reply.Header.ResponseTo != 42 {
		t.Fatalf("expected responseTo=42, got %d", reply.Header.ResponseTo)
	}

	ok, found := p.Lookup(reply.Document, "ok")
	if !found {
		t.Fatalf("missing ok field in parsed reply")
	}
	if v, ok := p.DoubleValue(ok); !ok || v != 1 {
		t.Fatalf("expected ok=1, got %v (ok=%v)", v, ok)
	}
}

func TestParseReplyTruncatedFrame(t *testing.T) {
	p := bsonpack.New()
	_, err := wire.ParseReply(p, []byte{1, 2, 3}, nil)
	if err != wire.ErrProtocolFrame {
		t.Fatalf("expected ErrProtocolFrame, got %v", err)
	}
}

func TestParseReplyUnknownOpcode(t *testing.T) {
	p := bsonpack.New()
	wm := make([]byte, 16)
	// length
	wm[0] = 16
	// opcode field (bytes 12:16) set to something nobody speaks.
	wm[12] = 0xEF
	wm[13] = 0xBE
	wm[14] = 0xAD
	wm[15] = 0xDE

	_, err := wire.ParseReply(p, wm, nil)
	if err != wire.ErrProtocolUnknownOp {
		t.Fatalf("expected ErrProtocolUnknownOp, got %v", err)
	}
}

func TestCompressBodyRoundTrip(t *testing.T) {
	p := bsonpack.New()
	doc := p.MakeDocument(p.ElementProducer("ping", p.Int32(1)))

	wm, err := wire.BuildOpMsg(p, doc, wire.NextRequestID())
	if err != nil {
		t.Fatalf("BuildOpMsg: %v", err)
	}

	compressed, err := wire.CompressBody(wm, wire.SnappyCompressor{})
	if err != nil {
		t.Fatalf("CompressBody: %v", err)
	}

	h, _, err := wire.ReadHeader(compressed)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.OpCode != wire.OpCompressed {
		t.Fatalf("expected OP_COMPRESSED, got %s", h.OpCode)
	}

	compressors := map[wire.CompressorID]wire.Compressor{
		wire.CompressorSnappy: wire.SnappyCompressor{},
	}
	reply, err := wire.ParseReply(p, compressed, compressors)
	if err != nil {
		t.Fatalf("ParseReply (compressed): %v", err)
	}

	ping, ok := p.Lookup(reply.Document, "ping")
	if !ok {
		t.Fatalf("missing ping field after decompression")
	}
	if n, ok := p.Int32Value(ping); !ok || n != 1 {
		t.Fatalf("expected ping=1, got %v (ok=%v)", n, ok)
	}
}

func TestParseReplyUnsupportedCompressor(t *testing.T) {
	p := bsonpack.New()
	doc := p.MakeDocument(p.ElementProducer("ping", p.Int32(1)))
	wm, _ := wire.BuildOpMsg(p, doc, wire.NextRequestID())
	compressed, err := wire.CompressBody(wm, wire.SnappyCompressor{})
	if err != nil {
		t.Fatalf("CompressBody: %v", err)
	}

	_, err = wire.ParseReply(p, compressed, map[wire.CompressorID]wire.Compressor{})
	if err != wire.ErrProtocolCodec {
		t.Fatalf("expected ErrProtocolCodec, got %v", err)
	}
}
