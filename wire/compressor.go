package wire

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// CompressorID is the wire-level identifier for a negotiated compression
// algorithm, carried in an OP_COMPRESSED header.
type CompressorID uint8

const (
	CompressorNoop   CompressorID = 0
	CompressorSnappy CompressorID = 1
	CompressorZlib   CompressorID = 2
	CompressorZstd   CompressorID = 3
)

// Compressor compresses and decompresses OP_COMPRESSED bodies. Grounded on
// core/connection/connection.go's compressMessage/uncompressMessage, which
// compress everything after the 16-byte header and reconstruct it on the
// way back in.
type Compressor interface {
	Name() string
	ID() CompressorID
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// NoopCompressor is the identity compressor (wire id CompressorNoop). An
// uncompressed connection carries no compressor at all rather than this one.
type NoopCompressor struct{}

func (NoopCompressor) Name() string          { return "noop" }
func (NoopCompressor) ID() CompressorID      { return CompressorNoop }
func (NoopCompressor) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}
func (NoopCompressor) Decompress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// SnappyCompressor compresses with github.com/golang/snappy.
type SnappyCompressor struct{}

func (SnappyCompressor) Name() string     { return "snappy" }
func (SnappyCompressor) ID() CompressorID { return CompressorSnappy }

func (SnappyCompressor) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst, src), nil
}

func (SnappyCompressor) Decompress(dst, src []byte) ([]byte, error) {
	out, err := snappy.Decode(dst, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolCodec, err)
	}
	return out, nil
}

// ZlibCompressor compresses with the standard library's compress/zlib.
// zlib is one of the negotiable compressors; it ships in the standard
// library rather than a third-party package, so unlike snappy and zstd
// there's no import to bring in for it.
type ZlibCompressor struct{ Level int }

func (ZlibCompressor) Name() string     { return "zlib" }
func (ZlibCompressor) ID() CompressorID { return CompressorZlib }

func (z ZlibCompressor) Compress(dst, src []byte) ([]byte, error) {
	level := z.Level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(dst, buf.Bytes()...), nil
}

func (ZlibCompressor) Decompress(dst, src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolCodec, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolCodec, err)
	}
	return append(dst, out...), nil
}

// ZstdCompressor compresses with github.com/klauspost/compress/zstd.
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCompressor constructs a reusable zstd encoder/decoder pair.
func NewZstdCompressor() (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ZstdCompressor{enc: enc, dec: dec}, nil
}

func (*ZstdCompressor) Name() string     { return "zstd" }
func (*ZstdCompressor) ID() CompressorID { return CompressorZstd }

func (z *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst), nil
}

func (z *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolCodec, err)
	}
	return out, nil
}

// NegotiateCompressor picks the first entry in preferred (the caller's
// declared preference order, from the connection string's `compressors`
// option) that also appears in serverSupported (the server's advertised
// `compression` array), resolving the ambiguous precedence between the
// two orderings in the caller's favor. Returns nil if nothing matches,
// meaning uncompressed traffic.
func NegotiateCompressor(preferred []Compressor, serverSupported []string) Compressor {
	supported := make(map[string]bool, len(serverSupported))
	for _, name := range serverSupported {
		supported[name] = true
	}
	for _, c := range preferred {
		if supported[c.Name()] {
			return c
		}
	}
	return nil
}
