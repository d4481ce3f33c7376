package retry

import (
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

// LogObserver logs every retry at warn level.
type LogObserver struct {
	Logger *zap.Logger
	Op     string
}

// OnRetry implements Observer.
func (o LogObserver) OnRetry(attempt int, wait time.Duration, err error) {
	if o.Logger == nil {
		return
	}
	o.Logger.Warn("retrying after transient error",
		zap.String("operation", o.Op),
		zap.Int("attempt", attempt),
		zap.Duration("wait", wait),
		zap.String("error_type", string(errors.TypeOf(err))),
		zap.Error(err))
}
