// Package wirecompress registers a Zstandard gRPC wire compressor for the
// rpc query facade, so Arrow record batches travel compressed between
// client and server without the core store or engine knowing about it.
package wirecompress

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// Name is the value negotiated in the grpc-encoding header.
const Name = "zstd"

// codec implements encoding.Compressor. A fresh encoder/decoder is created
// per call rather than shared, since grpc-go may invoke Compress/Decompress
// concurrently from several RPCs.
type codec struct{}

// Register installs the zstd codec as a gRPC wire compressor under Name.
// Call once at process start, before dialing or serving.
func Register() {
	encoding.RegisterCompressor(codec{})
}

func (codec) Name() string { return Name }

func (codec) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func (codec) Decompress(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}
