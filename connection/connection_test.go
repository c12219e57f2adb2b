package connection_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/corewire/mongodrv/connection"
	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/pack/bsonpack"
	"github.com/corewire/mongodrv/wire"
)

// fakeServer reads one framed wire message at a time off server and
// hands it to respond, which returns the bytes to write back. Used to
// drive Connection against an in-memory net.Pipe instead of a real
// socket.
func fakeServer(t *testing.T, server net.Conn, p pack.Pack, respond func(reqDoc pack.Value) pack.Value) {
	t.Helper()
	go func() {
		for {
			var sizeBuf [4]byte
			if _, err := readFull(server, sizeBuf[:]); err != nil {
				return
			}
			size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
			buf := make([]byte, size)
			copy(buf, sizeBuf[:])
			if _, err := readFull(server, buf[4:]); err != nil {
				return
			}

			h, _, err := wire.ReadHeader(buf)
			if err != nil {
				return
			}
			reply, err := wire.ParseReply(p, buf, nil)
			if err != nil {
				return
			}

			respDoc := respond(reply.Document)
			respBytes, err := wire.BuildOpMsg(p, respDoc, wire.NextRequestID())
			if err != nil {
				return
			}
			respHeader, rest, _ := wire.ReadHeader(respBytes)
			respHeader.ResponseTo = h.RequestID
			patched, err := patchResponseTo(respBytes, rest, respHeader)
			if err != nil {
				return
			}
			if _, err := server.Write(patched); err != nil {
				return
			}
		}
	}()
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// patchResponseTo rebuilds a wire message with h.ResponseTo overwritten,
// since BuildOpMsg always emits responseTo=0.
func patchResponseTo(original []byte, _ []byte, h wire.Header) ([]byte, error) {
	patched := append([]byte{}, original...)
	patched[8] = byte(h.ResponseTo)
	patched[9] = byte(h.ResponseTo >> 8)
	patched[10] = byte(h.ResponseTo >> 16)
	patched[11] = byte(h.ResponseTo >> 24)
	return patched, nil
}

func isMasterReply(p pack.Pack, wireVersion int32, setName string, isPrimary bool) pack.Value {
	elems := []pack.Element{
		p.ElementProducer("ok", p.Double(1)),
		p.ElementProducer("ismaster", p.Bool(isPrimary)),
		p.ElementProducer("maxWireVersion", p.Int32(wireVersion)),
	}
	if setName != "" {
		elems = append(elems, p.ElementProducer("setName", p.String(setName)))
	}
	return p.MakeDocument(elems...)
}

func dialerFor(server, client net.Conn) connection.Dialer {
	used := false
	return connection.DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		if used {
			panic("dialerFor only supports a single Connect call")
		}
		used = true
		return client, nil
	})
}

func TestConnectHandshakeClassifiesPrimary(t *testing.T) {
	p := bsonpack.New()
	server, client := net.Pipe()
	defer server.Close()

	fakeServer(t, server, p, func(reqDoc pack.Value) pack.Value {
		return isMasterReply(p, 17, "rs0", true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := connection.Connect(ctx, "ignored:27017", p, connection.Options{
		Dialer: dialerFor(server, client),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if conn.State() != connection.StateReady {
		t.Fatalf("expected StateReady, got %v", conn.State())
	}
	desc := conn.Description()
	if desc.Status != connection.StatusPrimary {
		t.Fatalf("expected StatusPrimary, got %v", desc.Status)
	}
	if desc.SetName != "rs0" {
		t.Fatalf("expected setName rs0, got %q", desc.SetName)
	}
}

func TestConnectHandshakeClassifiesSecondary(t *testing.T) {
	p := bsonpack.New()
	server, client := net.Pipe()
	defer server.Close()

	fakeServer(t, server, p, func(reqDoc pack.Value) pack.Value {
		elems := []pack.Element{
			p.ElementProducer("ok", p.Double(1)),
			p.ElementProducer("ismaster", p.Bool(false)),
			p.ElementProducer("secondary", p.Bool(true)),
			p.ElementProducer("setName", p.String("rs0")),
			p.ElementProducer("maxWireVersion", p.Int32(17)),
		}
		return p.MakeDocument(elems...)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := connection.Connect(ctx, "ignored:27017", p, connection.Options{
		Dialer: dialerFor(server, client),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if conn.Description().Status != connection.StatusSecondary {
		t.Fatalf("expected StatusSecondary, got %v", conn.Description().Status)
	}
}

func TestRoundTripAfterHandshake(t *testing.T) {
	p := bsonpack.New()
	server, client := net.Pipe()
	defer server.Close()

	fakeServer(t, server, p, func(reqDoc pack.Value) pack.Value {
		if name, ok := p.Lookup(reqDoc, "ping"); ok {
			if n, _ := p.Int32Value(name); n == 1 {
				return p.MakeDocument(p.ElementProducer("ok", p.Double(1)))
			}
		}
		return isMasterReply(p, 17, "", true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := connection.Connect(ctx, "ignored:27017", p, connection.Options{
		Dialer: dialerFor(server, client),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	body := p.MakeDocument(p.ElementProducer("ping", p.Int32(1)), p.ElementProducer("$db", p.String("admin")))
	wm, err := wire.BuildOpMsg(p, body, wire.NextRequestID())
	if err != nil {
		t.Fatalf("BuildOpMsg: %v", err)
	}

	respBytes, err := conn.RoundTrip(ctx, wm)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	reply, err := wire.ParseReply(p, respBytes, nil)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	ok, found := p.Lookup(reply.Document, "ok")
	if !found {
		t.Fatalf("expected ok field in reply")
	}
	if v, _ := p.DoubleValue(ok); v != 1 {
		t.Fatalf("expected ok=1, got %v", v)
	}
}

func TestCloseFailsOutstandingWaiters(t *testing.T) {
	p := bsonpack.New()
	server, client := net.Pipe()

	fakeServer(t, server, p, func(reqDoc pack.Value) pack.Value {
		return isMasterReply(p, 17, "", true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := connection.Connect(ctx, "ignored:27017", p, connection.Options{
		Dialer: dialerFor(server, client),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	server.Close()
	conn.Close()

	if conn.Alive() {
		t.Fatalf("expected connection to be dead after Close")
	}
}
