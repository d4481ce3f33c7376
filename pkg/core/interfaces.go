// Package core declares the collaborators the extraction engine consumes:
// a search capability on the remote API and an append-only record sink.
package core

import (
	"context"

	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

const (
	// PageSize is the window of a full run.
	PageSize = 50
	// GuessRecordsCount is the sample size of guess mode.
	GuessRecordsCount = 10
	// PreviewRecordsCount caps the records of preview mode.
	PreviewRecordsCount = 15
)

// SearchOptions windows a search call. MaxResults 0 leaves the page size
// to the server.
type SearchOptions struct {
	StartAt    int
	MaxResults int
}

// SearchClient is the remote search API.
type SearchClient interface {
	// CheckCredential verifies that identity may use the API. Rejections
	// are authentication errors.
	CheckCredential(ctx context.Context, identity string) error
	// TotalCount returns how many records query matches.
	TotalCount(ctx context.Context, query string) (int, error)
	// SearchIssues returns one window of records matching query.
	SearchIssues(ctx context.Context, query string, opts SearchOptions) ([]schema.RawRecord, error)
}

// RecordSink receives typed rows. Calls are strictly sequential; Finish is
// called once after the last Append of a successful run.
type RecordSink interface {
	Append(ctx context.Context, row schema.Row) error
	Finish(ctx context.Context) error
}

// Closer is implemented by sinks holding resources that must be released
// whether or not the run succeeded.
type Closer interface {
	Close() error
}
