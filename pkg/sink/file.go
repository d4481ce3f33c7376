package sink

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/jira-extract/pkg/compression"
)

// OutputFile is a buffered, optionally compressed output stream. Close
// flushes every layer and closes the file; it is idempotent.
type OutputFile struct {
	file   *os.File
	buf    *bufio.Writer
	codec  io.WriteCloser
	closed bool
}

// CreateOutput creates path (and its directory) and stacks the named
// compression on it. Path "-" writes to stdout, which is never closed.
func CreateOutput(path, compressionName string) (*OutputFile, error) {
	alg, err := compression.Parse(compressionName)
	if err != nil {
		return nil, err
	}

	var f *os.File
	if path == "-" {
		f = os.Stdout
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, SinkError(err, "failed to create output directory")
			}
		}
		f, err = os.Create(path) //nolint:gosec // path comes from the job configuration
		if err != nil {
			return nil, SinkError(err, "failed to create output file")
		}
	}

	buf := bufio.NewWriterSize(f, 64*1024)
	codec, err := compression.NewWriter(buf, alg, compression.Default)
	if err != nil {
		if f != os.Stdout {
			f.Close()
		}
		return nil, err
	}
	return &OutputFile{file: f, buf: buf, codec: codec}, nil
}

// Write implements io.Writer.
func (o *OutputFile) Write(p []byte) (int, error) {
	return o.codec.Write(p)
}

// Close implements io.Closer.
func (o *OutputFile) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	err := o.codec.Close()
	if ferr := o.buf.Flush(); err == nil {
		err = ferr
	}
	if o.file != os.Stdout {
		if cerr := o.file.Close(); err == nil {
			err = cerr
		}
	}
	return SinkError(err, "failed to close output")
}
