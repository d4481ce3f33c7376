// Package testutil provides testing utilities for jira-extract
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/jira-extract/pkg/retry"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SleepRecorder replaces retry sleeps and remembers the requested waits.
type SleepRecorder struct {
	Waits []time.Duration
}

// Sleep implements retry.SleepFunc without blocking.
func (s *SleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.Waits = append(s.Waits, d)
	return nil
}

// FastPolicy returns a retry policy with the given limit that never blocks,
// along with the recorder of its waits.
func FastPolicy(limit int) (*retry.Policy, *SleepRecorder) {
	rec := &SleepRecorder{}
	return retry.New(limit, time.Second, retry.WithSleep(rec.Sleep)), rec
}
