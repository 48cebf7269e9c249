package codec

import "fmt"

// MalformedEventError reports a wire event that failed to decode: missing
// points, a negative radius, a non-finite number, or an unrecognized
// property/color value. The Gate and Hub never see the offending event;
// the router logs and drops it without replying to the originator.
type MalformedEventError struct {
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: %s", e.Reason)
}

func malformed(format string, args ...any) error {
	return &MalformedEventError{Reason: fmt.Sprintf(format, args...)}
}
