package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrToolLoopExceeded is returned when an analyst keeps requesting tools past the configured ceiling.
var ErrToolLoopExceeded = errors.New("tool loop ceiling exceeded")

// ServiceError wraps a Completion or Embedding Service failure.
type ServiceError struct {
	Op        string
	Err       error
	Temporary bool
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether backing off and retrying may succeed.
func (e *ServiceError) Retryable() bool { return e.Temporary }

// ToolError wraps a data-fetch tool failure.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// MatchError means no decision log exists for a fill inside the lookback window.
type MatchError struct {
	FillID string
	Market string
	Dates  []string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("no decision log for fill %s (market %s, dates %s)", e.FillID, e.Market, strings.Join(e.Dates, ","))
}

// DataFormatError means a decision log or record file is unreadable or malformed.
type DataFormatError struct {
	Path string
	Err  error
}

func (e *DataFormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed data: %v", e.Err)
	}
	return fmt.Sprintf("malformed data in %s: %v", e.Path, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// IdempotenceViolation is returned instead of reflecting twice on the same fill.
type IdempotenceViolation struct {
	FillID string
}

func (e *IdempotenceViolation) Error() string {
	return fmt.Sprintf("fill %s already processed", e.FillID)
}

func IsServiceError(err error) bool {
	var target *ServiceError
	return errors.As(err, &target)
}

func IsToolError(err error) bool {
	var target *ToolError
	return errors.As(err, &target)
}

func IsMatchError(err error) bool {
	var target *MatchError
	return errors.As(err, &target)
}

func IsDataFormatError(err error) bool {
	var target *DataFormatError
	return errors.As(err, &target)
}

func IsIdempotenceViolation(err error) bool {
	var target *IdempotenceViolation
	return errors.As(err, &target)
}
