package metrics

import "time"

// Outcome labels used for transfer and validation results.
const (
	OutcomeSuccess             = "success"
	OutcomeInvalidArgument     = "invalid_argument"
	OutcomeNotFound            = "not_found"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeError               = "error"
)

// Collector defines the interface for collecting ledger metrics.
type Collector interface {
	RecordTransfer(outcome string, duration time.Duration)
	RecordValidation(outcome string)
	RecordAccountCreated()

	// Account locks
	RecordLockWait(duration time.Duration)
	RecordLockCount(n int)
}

// NoOpCollector is used when metrics are disabled.
type NoOpCollector struct{}

func (NoOpCollector) RecordTransfer(outcome string, duration time.Duration) {}
func (NoOpCollector) RecordValidation(outcome string)                       {}
func (NoOpCollector) RecordAccountCreated()                                 {}
func (NoOpCollector) RecordLockWait(duration time.Duration)                 {}
func (NoOpCollector) RecordLockCount(n int)                                 {}
