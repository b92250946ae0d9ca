package broker

import "errors"

var (
	ErrClosed               = errors.New("broker is closed")
	ErrNilObserver          = errors.New("observer is nil")
	ErrUncomparableObserver = errors.New("observer type is not comparable")
	ErrObserverPanic        = errors.New("observer panicked")
)
