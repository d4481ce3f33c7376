package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"key":"PROJ-1","fields.summary":"Broken build"}`+"\n", 200))

	for _, alg := range []Algorithm{None, Gzip, Deflate, Snappy, S2, LZ4, Zstd} {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(alg), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, alg, level)
				require.NoError(t, err)
				_, err = w.Write(payload)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				if alg != None {
					assert.Less(t, buf.Len(), len(payload))
				}

				r, err := NewReader(&buf, alg)
				require.NoError(t, err)
				defer r.Close()
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, payload, got)
			})
		}
	}
}

func TestParse(t *testing.T) {
	a, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	a, err = Parse("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	assert.Equal(t, ".zst", a.Extension())

	_, err = Parse("brotli")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
