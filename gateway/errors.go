package gateway

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrIdentityUnavailable is returned by SendMessage when nobody is signed in.
// Read operations degrade to empty results instead.
var ErrIdentityUnavailable = errors.New("no authenticated identity")

// TransportError reports a failed exchange: network failure, non-2xx status or an undecodable body.
type TransportError struct {
	Err        error
	Op         string
	Body       string
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a call abandoned because its deadline passed.
type TimeoutError struct {
	Err error
	Op  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
