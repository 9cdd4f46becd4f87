package exec

import "errors"

// ErrUnfillable marks an order the simulator cannot fill honestly: the
// required price lies outside the fill bar's traded range. The order is
// canceled rather than filled at a fabricated price.
var ErrUnfillable = errors.New("exec: order unfillable at attributed candle")

// TransientError wraps failures worth retrying with backoff (timeouts,
// rate limits).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps failures that must halt the instrument (auth or
// permission problems). Never retried.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err must halt the instrument.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
