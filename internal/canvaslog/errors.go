package canvaslog

import "fmt"

// RejectionCode names why Append refused an event, matching the Canvas Log
// failure modes of spec.md §4.2.
type RejectionCode string

const (
	RejectDuplicateShapeId  RejectionCode = "DuplicateShapeId"
	RejectUnknownShapeId    RejectionCode = "UnknownShapeId"
	RejectMalformedEvent    RejectionCode = "MalformedEvent"
	RejectInvariantViolation RejectionCode = "InvariantViolation"
)

// RejectedError is returned by Append when an event fails an invariant
// check. The log is left unchanged.
type RejectedError struct {
	Code   RejectionCode
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func reject(code RejectionCode, format string, args ...any) error {
	return &RejectedError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
