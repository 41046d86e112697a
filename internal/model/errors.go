package model

import "errors"

// Validation errors surfaced to callers as invalid-parameter conditions.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidPeriod    = errors.New("invalid period: must be week or month")
	ErrClassNotFound    = errors.New("class not found")
	ErrNotEnrolled      = errors.New("student not enrolled in class")
	ErrNotFound         = errors.New("not found")
)
