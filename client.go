// Package mongodrv wires the connection string, transport, failover and
// session layers into a single entry point: Connect parses a connection
// string and returns a database handle ready to dispatch commands.
// Grounded on mongo.Connect/mongo.Client's constructor, which plays the
// same "parse URI, build a topology, hand back a client-facing handle"
// role, adapted here to this core's value-typed DatabaseHandle and its
// narrower, single-address topology (multi-node topology discovery is
// out of scope).
package mongodrv

import (
	"context"
	"time"

	"github.com/corewire/mongodrv/connection"
	"github.com/corewire/mongodrv/connection/auth"
	"github.com/corewire/mongodrv/connstring"
	"github.com/corewire/mongodrv/dbhandle"
	"github.com/corewire/mongodrv/failover"
	"github.com/corewire/mongodrv/internal/logger"
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack/bsonpack"
	"github.com/corewire/mongodrv/wire"
)

// Options overrides the defaults Connect would otherwise derive from the
// connection string alone: a logger, an app name to gossip during the
// handshake, and the retry backoff shape when the connection string's
// retryWrites=true enables failover at all.
type Options struct {
	Log          *logger.Logger
	AppName      string
	RetryBackoff failover.Strategy
}

// defaultRetryBackoff is a conservative "factor=n->2n" backoff shape:
// three retries with a 100ms initial delay, the delay growing linearly
// with the attempt number (200ms, 400ms, 600ms).
func defaultRetryBackoff() failover.Strategy {
	return failover.Strategy{
		InitialDelay: 100 * time.Millisecond,
		Retries:      3,
		DelayFactor:  failover.Linear(2),
	}
}

// Connect parses raw as a connection string and returns a DatabaseHandle
// scoped to its database segment. Only the first host is dialed — this
// core has no server-selection/topology-discovery layer (this module's
// Non-goals), so a multi-host connection string is accepted for parsing
// but only ever contacts Hosts[0].
func Connect(ctx context.Context, raw string, opts Options) (dbhandle.DatabaseHandle, error) {
	cs, err := connstring.Parse(raw)
	if err != nil {
		return dbhandle.DatabaseHandle{}, err
	}
	if cs.Database == "" {
		return dbhandle.DatabaseHandle{}, mongoerr.InvalidArgument{Reason: "connection string must name a database"}
	}

	log := opts.Log
	if log == nil {
		log = logger.New(nil, 0, nil)
	}

	pk := bsonpack.New()

	compressors, err := compressorsFor(cs.Compressors)
	if err != nil {
		return dbhandle.DatabaseHandle{}, err
	}

	connOpts := connection.Options{
		Compressors:    compressors,
		AppName:        opts.AppName,
		ConnectTimeout: cs.ConnectTimeout,
		Logger:         log,
	}
	if cs.HasAuth {
		mechanism := cs.AuthMechanism
		if mechanism == "" {
			mechanism = auth.MechanismScramSHA256
		}
		connOpts.Authenticator = auth.ScramAuthenticator{
			Mechanism: mechanism,
			Username:  cs.Username,
			Password:  cs.Password,
		}
	}

	maxPoolSize := cs.MaxPoolSize
	if maxPoolSize <= 0 {
		maxPoolSize = 1
	}
	pool := connection.NewPool(cs.Hosts[0], pk, connOpts, maxPoolSize, cs.SocketTimeout)

	var strategy *failover.Strategy
	if cs.RetryWrites {
		s := opts.RetryBackoff
		if s.Retries == 0 && s.DelayFactor == nil {
			s = defaultRetryBackoff()
		}
		strategy = &s
	}

	return dbhandle.New(pk, pool, cs.Database, strategy, log), nil
}

// compressorsFor maps the connection string's ordered compressor
// preference onto this core's wire.Compressor implementations, silently
// dropping names this core doesn't implement rather than failing the
// connect call outright.
func compressorsFor(names []string) ([]wire.Compressor, error) {
	var out []wire.Compressor
	for _, name := range names {
		switch name {
		case "snappy":
			out = append(out, wire.SnappyCompressor{})
		case "zlib":
			out = append(out, wire.ZlibCompressor{})
		case "zstd":
			zstd, err := wire.NewZstdCompressor()
			if err != nil {
				return nil, mongoerr.InvalidArgument{Reason: "zstd compressor: " + err.Error()}
			}
			out = append(out, zstd)
		}
	}
	return out, nil
}
