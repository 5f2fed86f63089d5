package eventstream

import "errors"

// ErrNilGapEvent indicates a nil gap event payload was provided to a publisher.
var ErrNilGapEvent = errors.New("nil gap event")
