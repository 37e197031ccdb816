package signalbus

import "github.com/pkg/errors"

// ErrHandlerPanicked is wrapped into the error reported for a handler that panicked
// while the bus runs with error isolation.
var ErrHandlerPanicked = errors.New("signalbus: handler panicked")
