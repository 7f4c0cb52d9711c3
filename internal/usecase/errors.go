package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUpstream              = errors.New("upstream request failed")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrPayloadNotFound       = errors.New("embedded payload not found")
)
