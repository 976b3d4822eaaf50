package service

import "errors"

// ErrNoCourses is returned by batch enrolment syncs when no course is stored locally.
var ErrNoCourses = errors.New("no courses stored locally; sync courses first")

// ValidationError reports rejected input. Message is safe to show to users.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
