package errors

import "errors"

var (
	// Another generation for the same chapter is already in flight.
	// This is a contended state, not a failure.
	ErrLockBusy = errors.New("generation already in progress")

	// The upstream chapter fetch or extraction produced no usable content.
	ErrContentUnavailable = errors.New("chapter content unavailable")

	// A single chunk's synthesis exceeded its wall-clock bound.
	ErrSynthesisTimeout = errors.New("synthesis timed out")

	// The synthesis service failed outright.
	ErrSynthesisFailure = errors.New("synthesis failed")

	// No audio arrived within the consumer timeout. The producer is
	// unresponsive or dead.
	ErrConsumerStarved = errors.New("no audio received in time")

	// Cache directory or file IO failed.
	ErrStorageFailure = errors.New("cache storage failure")
)
