package resilience

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNilLogger indicates no logger was provided to Build
	ErrNilLogger = errors.New("resilience: logger must not be nil")
	// ErrEmptyOperationName indicates the operation name was empty or whitespace
	ErrEmptyOperationName = errors.New("resilience: operation name must not be empty")
	// ErrNilClassifier indicates no fault classifier was provided
	ErrNilClassifier = errors.New("resilience: classifier must not be nil")
	// ErrNegativeRetries indicates a negative retry count
	ErrNegativeRetries = errors.New("resilience: max retries must not be negative")
)

// Logger receives retry diagnostics. services.LogService and the standard
// log package both adapt to it trivially.
type Logger interface {
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Policy retries an operation a bounded number of times for errors its
// classifier accepts. maxRetries counts additional attempts: zero means
// try once and never retry.
type Policy struct {
	name       string
	maxRetries int
	classifier Classifier
	logger     Logger
	baseDelay  time.Duration
}

// Build validates its arguments eagerly and returns a ready policy.
// A nil logger or blank operation name fails here, not at execution time.
func Build(logger Logger, operationName string, maxRetries int, classifier Classifier) (*Policy, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if strings.TrimSpace(operationName) == "" {
		return nil, ErrEmptyOperationName
	}
	if classifier == nil {
		return nil, ErrNilClassifier
	}
	if maxRetries < 0 {
		return nil, ErrNegativeRetries
	}

	return &Policy{
		name:       operationName,
		maxRetries: maxRetries,
		classifier: classifier,
		logger:     logger,
		baseDelay:  time.Second,
	}, nil
}

// WithBaseDelay overrides the backoff unit. Tests use a tiny delay.
func (p *Policy) WithBaseDelay(d time.Duration) *Policy {
	p.baseDelay = d
	return p
}

// Execute runs op, retrying classified-retryable failures with exponential
// backoff. A non-retryable error propagates immediately without consuming
// the retry budget.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避：第1次重试等 1 个单位，之后翻倍
			backoff := time.Duration(1<<uint(attempt-1)) * p.baseDelay
			p.logger.Warnf("[%s] attempt %d/%d failed (%s), retrying in %v: %v",
				p.name, attempt, p.maxRetries, Classify(lastErr), backoff, lastErr)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		if !p.classifier(err) {
			return err
		}
		lastErr = err
	}

	p.logger.Errorf("[%s] giving up after %d attempts: %v", p.name, p.maxRetries+1, lastErr)
	return lastErr
}
