// Package connstring parses the MongoDB connection string grammar:
// `mongodb://[user:pass@]host1[:port][,host2...]/[db][?options]`.
// No connection-string parsing library is used here — this is built
// directly against the grammar above using net/url for the parts it
// already gets right (percent decoding, query string parsing); see
// DESIGN.md for why no third-party library was a better fit than
// net/url here.
package connstring

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/corewire/mongodrv/mongoerr"
)

const scheme = "mongodb://"

// ConnString is the parsed connection string, per this module's
// recognized option list.
type ConnString struct {
	Hosts    []string
	Database string

	Username string
	Password string
	HasAuth  bool

	ReplicaSet     string
	TLS            bool
	AuthSource     string
	AuthMechanism  string
	Compressors    []string // ordered, caller's declared preference
	MaxPoolSize    int64
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	RetryWrites    bool
}

// Parse parses a connection string, failing with mongoerr.InvalidArgument
// on any grammar violation.
func Parse(raw string) (ConnString, error) {
	if !strings.HasPrefix(raw, scheme) {
		return ConnString{}, mongoerr.InvalidArgument{Reason: "connection string must start with mongodb://"}
	}
	rest := raw[len(scheme):]

	var userinfo string
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		userinfo = rest[:at]
		rest = rest[at+1:]
	}

	hostPart := rest
	tail := ""
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		hostPart = rest[:slash]
		tail = rest[slash:]
	}
	if hostPart == "" {
		return ConnString{}, mongoerr.InvalidArgument{Reason: "connection string requires at least one host"}
	}

	hosts := strings.Split(hostPart, ",")
	for _, h := range hosts {
		if h == "" {
			return ConnString{}, mongoerr.InvalidArgument{Reason: "empty host in connection string"}
		}
	}

	cs := ConnString{Hosts: hosts}

	if userinfo != "" {
		parts := strings.SplitN(userinfo, ":", 2)
		user, err := url.QueryUnescape(parts[0])
		if err != nil {
			return ConnString{}, mongoerr.InvalidArgument{Reason: "malformed username: " + err.Error()}
		}
		cs.Username = user
		cs.HasAuth = true
		if len(parts) == 2 {
			pass, err := url.QueryUnescape(parts[1])
			if err != nil {
				return ConnString{}, mongoerr.InvalidArgument{Reason: "malformed password: " + err.Error()}
			}
			cs.Password = pass
		}
	}

	if tail == "" {
		return cs, nil
	}

	// tail is "/[db][?options]"; url.Parse handles the path/query split
	// and percent-decoding once the host-list ambiguity is out of the way.
	u, err := url.Parse("mongodb://placeholder" + tail)
	if err != nil {
		return ConnString{}, mongoerr.InvalidArgument{Reason: "malformed path/options: " + err.Error()}
	}

	cs.Database = strings.TrimPrefix(u.Path, "/")

	if err := applyOptions(&cs, u.Query()); err != nil {
		return ConnString{}, err
	}

	return cs, nil
}

func applyOptions(cs *ConnString, q url.Values) error {
	if v := q.Get("replicaSet"); v != "" {
		cs.ReplicaSet = v
	}
	if v := q.Get("ssl"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return mongoerr.InvalidArgument{Reason: "invalid ssl option: " + v}
		}
		cs.TLS = b
	}
	if v := q.Get("tls"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return mongoerr.InvalidArgument{Reason: "invalid tls option: " + v}
		}
		cs.TLS = b
	}
	if v := q.Get("authSource"); v != "" {
		cs.AuthSource = v
	}
	if v := q.Get("authMechanism"); v != "" {
		cs.AuthMechanism = v
	}
	if v := q.Get("compressors"); v != "" {
		cs.Compressors = strings.Split(v, ",")
	}
	if v := q.Get("maxPoolSize"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return mongoerr.InvalidArgument{Reason: "invalid maxPoolSize: " + v}
		}
		cs.MaxPoolSize = n
	}
	if v := q.Get("connectTimeoutMS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return mongoerr.InvalidArgument{Reason: "invalid connectTimeoutMS: " + v}
		}
		cs.ConnectTimeout = time.Duration(ms) * time.Millisecond
	}
	if v := q.Get("socketTimeoutMS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return mongoerr.InvalidArgument{Reason: "invalid socketTimeoutMS: " + v}
		}
		cs.SocketTimeout = time.Duration(ms) * time.Millisecond
	}
	if v := q.Get("retryWrites"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return mongoerr.InvalidArgument{Reason: "invalid retryWrites: " + v}
		}
		cs.RetryWrites = b
	}
	return nil
}
