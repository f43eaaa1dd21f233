package domain

import "errors"

// ErrNotFound marks lookups for topics that do not exist or belong to a
// different owner. Surfaced to callers immediately, never retried.
var ErrNotFound = errors.New("not found")

// ErrComputation marks scorer or aggregation failures. Caught per topic in
// bulk jobs so one bad topic cannot fail the batch.
var ErrComputation = errors.New("computation failed")
