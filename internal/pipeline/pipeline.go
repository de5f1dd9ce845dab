package pipeline

import (
	"context"
	"errors"
	"time"

	"aistoryctl/internal/infra"
	"aistoryctl/internal/poll"
)

var (
	errNilBackend = errors.New("pipeline: backend client is required")
	errNilCache   = errors.New("pipeline: entity cache is required")
)

func applyDefaults(interval *time.Duration, maxAttempts *int, logger **infra.Logger) {
	if *interval <= 0 {
		*interval = defaultPollInterval
	}
	if *maxAttempts <= 0 {
		*maxAttempts = defaultMaxAttempts
	}
	if *logger == nil {
		l := infra.DiscardLogger()
		*logger = &l
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, poll.ErrCancelled) || errors.Is(err, context.Canceled)
}

func isTimeout(err error) bool {
	return errors.Is(err, poll.ErrTimeout)
}
