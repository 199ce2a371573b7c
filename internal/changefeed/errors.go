package changefeed

import "errors"

// Errors returned by New. Use errors.Is() to check for them.
var (
	// ErrNilSink is returned when no sink is given to publish through.
	ErrNilSink = errors.New("changefeed: nil sink")

	// ErrNoTopic is returned when Options carries no topic function.
	ErrNoTopic = errors.New("changefeed: no topic function")
)
