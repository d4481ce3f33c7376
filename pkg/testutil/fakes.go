package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajitpratap0/jira-extract/pkg/core"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// Issue builds a record shaped like a Jira search result.
func Issue(n int) schema.RawRecord {
	return schema.RawRecord{
		"id":  fmt.Sprintf("%d", 10000+n),
		"key": fmt.Sprintf("PROJ-%d", n),
		"fields": map[string]interface{}{
			"summary":  fmt.Sprintf("issue %d", n),
			"priority": map[string]interface{}{"id": fmt.Sprintf("%d", n%5+1), "name": "Medium"},
			"created":  "2024-03-05T10:20:30.123+0000",
		},
	}
}

// FakeSearchClient serves a fixed set of records and records every call.
// Fail, when set, is consulted before each call and may inject an error.
type FakeSearchClient struct {
	mu      sync.Mutex
	Records []schema.RawRecord
	// Total overrides len(Records) as the reported count when non-negative.
	Total int
	// CredentialErr is returned by CheckCredential.
	CredentialErr error
	Fail          func(call string, n int) error

	CredentialChecks int
	CountCalls       int
	Searches         []core.SearchOptions
	calls            int
}

// NewFakeSearchClient serves n generated issues.
func NewFakeSearchClient(n int) *FakeSearchClient {
	recs := make([]schema.RawRecord, 0, n)
	for i := 1; i <= n; i++ {
		recs = append(recs, Issue(i))
	}
	return &FakeSearchClient{Records: recs, Total: -1}
}

func (f *FakeSearchClient) inject(call string) error {
	f.calls++
	if f.Fail != nil {
		return f.Fail(call, f.calls)
	}
	return nil
}

// CheckCredential implements core.SearchClient.
func (f *FakeSearchClient) CheckCredential(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CredentialChecks++
	return f.CredentialErr
}

// TotalCount implements core.SearchClient.
func (f *FakeSearchClient) TotalCount(_ context.Context, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CountCalls++
	if err := f.inject("count"); err != nil {
		return 0, err
	}
	if f.Total >= 0 {
		return f.Total, nil
	}
	return len(f.Records), nil
}

// SearchIssues implements core.SearchClient.
func (f *FakeSearchClient) SearchIssues(_ context.Context, _ string, opts core.SearchOptions) ([]schema.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Searches = append(f.Searches, opts)
	if err := f.inject("search"); err != nil {
		return nil, err
	}

	max := opts.MaxResults
	if max == 0 {
		max = core.PageSize
	}
	if opts.StartAt >= len(f.Records) {
		return nil, nil
	}
	end := opts.StartAt + max
	if end > len(f.Records) {
		end = len(f.Records)
	}
	return append([]schema.RawRecord(nil), f.Records[opts.StartAt:end]...), nil
}

// StartAts returns the StartAt of every search call so far.
func (f *FakeSearchClient) StartAts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.Searches))
	for _, s := range f.Searches {
		out = append(out, s.StartAt)
	}
	return out
}

// MemorySink collects rows in memory.
type MemorySink struct {
	Rows      []schema.Row
	Finished  int
	Closed    bool
	AppendErr error
}

// Append implements core.RecordSink.
func (s *MemorySink) Append(_ context.Context, row schema.Row) error {
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.Rows = append(s.Rows, row)
	return nil
}

// Finish implements core.RecordSink.
func (s *MemorySink) Finish(context.Context) error {
	s.Finished++
	return nil
}

// Close implements core.Closer.
func (s *MemorySink) Close() error {
	s.Closed = true
	return nil
}

// Transient returns a retryable connection error.
func Transient(msg string) error {
	return errors.New(errors.ErrorTypeConnection, msg)
}
