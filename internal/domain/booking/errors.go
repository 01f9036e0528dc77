package booking

import "errors"

var (
	// ErrSession is wrapped by every error caused by not being able to start
	// or keep the browser automation session.
	ErrSession = errors.New("automation session unavailable")

	ErrLoginRejected   = errors.New("login rejected")
	ErrNoMatchingClass = errors.New("no matching class")
	ErrNotReserved     = errors.New("class not reserved")
)
