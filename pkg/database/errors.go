// Package database provides sentinel errors for repository operations:
// explicit errors instead of nil, nil returns.
package database

import "errors"

var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrPetNotFound         = errors.New("pet not found")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrDeviceKeyMismatch   = errors.New("device already registered with a different public key")
)
