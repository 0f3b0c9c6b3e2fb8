package chart

import "errors"

var (
	// ErrClosed is returned for work arriving after the coordinator was closed
	ErrClosed = errors.New("chart coordinator closed")

	// ErrUnknownView is returned when no view has the given ID
	ErrUnknownView = errors.New("unknown view")

	// ErrUnknownStream is returned for stream names outside the vocabulary
	ErrUnknownStream = errors.New("unknown stream")

	// ErrDeleted is returned for data of a stream that was deleted
	ErrDeleted = errors.New("stream deleted")

	// ErrNotDeletable is returned when deleting a stream whose charts do not allow it
	ErrNotDeletable = errors.New("stream is not deletable")

	// ErrStaleBatch is returned for a batch whose sequence number was already applied
	ErrStaleBatch = errors.New("stale batch")
)
