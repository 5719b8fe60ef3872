package batch

import "errors"

var (
	ErrNilSubmitter     = errors.New("submitter cannot be nil")
	ErrSchedulerRunning = errors.New("scheduler is already running")
)
