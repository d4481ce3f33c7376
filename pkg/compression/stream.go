// Package compression wraps sink output streams with a compression codec
// chosen by name: gzip, zstd, snappy, s2, lz4, deflate or none.
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	None    Algorithm = "none"
	Gzip    Algorithm = "gzip"
	Snappy  Algorithm = "snappy"
	LZ4     Algorithm = "lz4"
	Zstd    Algorithm = "zstd"
	S2      Algorithm = "s2"
	Deflate Algorithm = "deflate"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

// Parse resolves an algorithm name. The empty string means None.
func Parse(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	switch a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2, Deflate:
		return a, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown compression %q", name)
	}
}

// Extension is the conventional file suffix, including the dot.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Snappy:
		return ".sz"
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	case S2:
		return ".s2"
	case Deflate:
		return ".deflate"
	default:
		return ""
	}
}

// ContentEncoding is the HTTP Content-Encoding of the algorithm, empty if
// there is no registered one.
func (a Algorithm) ContentEncoding() string {
	switch a {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Deflate:
		return "deflate"
	default:
		return ""
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w. Closing the returned writer flushes the codec but
// leaves w open.
func NewWriter(w io.Writer, alg Algorithm, level Level) (io.WriteCloser, error) {
	switch alg {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, mapDeflateLevel(level))
	case Deflate:
		return flate.NewWriter(w, mapDeflateLevel(level))
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case S2:
		opts := []s2.WriterOption{}
		if level >= Better {
			opts = append(opts, s2.WriterBetterCompression())
		}
		return s2.NewWriter(w, opts...), nil
	case LZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, err
		}
		return zw, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression %q", alg)
	}
}

// NewReader is the decompressing counterpart of NewWriter.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Deflate:
		return flate.NewReader(r), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown compression %q", alg)
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
