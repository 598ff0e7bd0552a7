package thread

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned before any request is made when a
// required setting is empty.
var ErrNotInitialized = errors.New("not initialized")

// TransportError is any failed call to the assistant API. Network, auth
// and server failures are not told apart.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
