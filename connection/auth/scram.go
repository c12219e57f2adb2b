// Package auth implements SCRAM-SHA-1/SCRAM-SHA-256 SASL conversation
// authentication run once a Connection reaches StateReady. Grounded on
// the FerretDB driver's internal/driver.Conn.Authenticate, using
// github.com/xdg-go/scram's
// HashGeneratorFcn/NewClientUnprepped/NewConversation/Step API, backed
// by github.com/xdg-go/stringprep and golang.org/x/crypto for the
// mechanism's hash functions.
package auth

import (
	"context"
	"fmt"

	"github.com/xdg-go/scram"

	"github.com/corewire/mongodrv/connection"
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/wire"
)

// Mechanism names this core supports: X.509, GSSAPI and cloud-IAM
// mechanisms are left unimplemented for lack of a groundable dependency.
const (
	MechanismScramSHA1   = "SCRAM-SHA-1"
	MechanismScramSHA256 = "SCRAM-SHA-256"
)

// ScramAuthenticator runs the saslStart/saslContinue conversation for
// SCRAM-SHA-1 or SCRAM-SHA-256, satisfying connection.Authenticator.
type ScramAuthenticator struct {
	Mechanism string
	Username  string
	Password  string
}

var _ connection.Authenticator = ScramAuthenticator{}

func hashGenerator(mechanism string) (scram.HashGeneratorFcn, error) {
	switch mechanism {
	case MechanismScramSHA1:
		return scram.SHA1, nil
	case MechanismScramSHA256:
		return scram.SHA256, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", mechanism)
	}
}

// Authenticate runs the full saslStart -> saslContinue* conversation
// over rt, per the FerretDB driver.Conn.Authenticate loop this is
// grounded on: each step's payload travels as a pack.Binary value, and
// the conversation ends when the server's reply carries done: true.
func (a ScramAuthenticator) Authenticate(ctx context.Context, p pack.Pack, rt connection.RoundTripper, database string) error {
	h, err := hashGenerator(a.Mechanism)
	if err != nil {
		return mongoerr.AuthenticationError{Mechanism: a.Mechanism, Cause: err}
	}

	client, err := h.NewClientUnprepped(a.Username, a.Password, "")
	if err != nil {
		return mongoerr.AuthenticationError{Mechanism: a.Mechanism, Cause: err}
	}
	conv := client.NewConversation()

	clientPayload, err := conv.Step("")
	if err != nil {
		return mongoerr.AuthenticationError{Mechanism: a.Mechanism, Cause: err}
	}

	reply, err := sendSASLStart(ctx, p, rt, database, a.Mechanism, clientPayload)
	if err != nil {
		return mongoerr.AuthenticationError{Mechanism: a.Mechanism, Cause: err}
	}

	for {
		if done, ok := lookupBool(p, reply, "done"); ok && done {
			return nil
		}

		serverPayload, ok := lookupBinary(p, reply, "payload")
		if !ok {
			return mongoerr.AuthenticationError{Mechanism: a.Mechanism, Cause: fmt.Errorf("missing payload in SASL reply")}
		}

		clientPayload, err = conv.Step(string(serverPayload))
		if err != nil {
			return mongoerr.AuthenticationError{Mechanism: a.Mechanism, Cause: err}
		}

		conversationID, _ := lookupInt32(p, reply, "conversationId")

		reply, err = sendSASLContinue(ctx, p, rt, database, conversationID, clientPayload)
		if err != nil {
			return mongoerr.AuthenticationError{Mechanism: a.Mechanism, Cause: err}
		}
	}
}

func sendSASLStart(ctx context.Context, p pack.Pack, rt connection.RoundTripper, database, mechanism, payload string) (pack.Value, error) {
	body := p.MakeDocument(
		p.ElementProducer("saslStart", p.Int32(1)),
		p.ElementProducer("mechanism", p.String(mechanism)),
		p.ElementProducer("payload", p.Binary([]byte(payload))),
		p.ElementProducer("$db", p.String(database)),
	)
	return dispatch(ctx, p, rt, body)
}

func sendSASLContinue(ctx context.Context, p pack.Pack, rt connection.RoundTripper, database string, conversationID int32, payload string) (pack.Value, error) {
	body := p.MakeDocument(
		p.ElementProducer("saslContinue", p.Int32(1)),
		p.ElementProducer("conversationId", p.Int32(conversationID)),
		p.ElementProducer("payload", p.Binary([]byte(payload))),
		p.ElementProducer("$db", p.String(database)),
	)
	return dispatch(ctx, p, rt, body)
}

func dispatch(ctx context.Context, p pack.Pack, rt connection.RoundTripper, body pack.Value) (pack.Value, error) {
	wm, err := wire.BuildOpMsg(p, body, wire.NextRequestID())
	if err != nil {
		return nil, err
	}
	respBytes, err := rt.RoundTrip(ctx, wm)
	if err != nil {
		return nil, err
	}
	reply, err := wire.ParseReply(p, respBytes, nil)
	if err != nil {
		return nil, err
	}

	ok := false
	if okVal, found := p.Lookup(reply.Document, "ok"); found {
		if f, isNum := p.AsFloat64(okVal); isNum {
			ok = f == 1
		}
	}
	if !ok {
		msg, _ := lookupString(p, reply.Document, "errmsg")
		return nil, fmt.Errorf("sasl step failed: %s", msg)
	}

	return reply.Document, nil
}

func lookupBool(p pack.Pack, doc pack.Value, name string) (bool, bool) {
	v, ok := p.Lookup(doc, name)
	if !ok {
		return false, false
	}
	return p.BoolValue(v)
}

func lookupBinary(p pack.Pack, doc pack.Value, name string) ([]byte, bool) {
	v, ok := p.Lookup(doc, name)
	if !ok {
		return nil, false
	}
	return p.BinaryValue(v)
}

func lookupInt32(p pack.Pack, doc pack.Value, name string) (int32, bool) {
	v, ok := p.Lookup(doc, name)
	if !ok {
		return 0, false
	}
	return p.Int32Value(v)
}

func lookupString(p pack.Pack, doc pack.Value, name string) (string, bool) {
	v, ok := p.Lookup(doc, name)
	if !ok {
		return "", false
	}
	return p.StringValue(v)
}
