package app

import "errors"

var (
	errUnavailable     = errors.New("unavailable")
	errQueueBacklogged = errors.New("queue depth exceeds soft cap")
)
