package coercer

import (
	"fmt"
)

// CoerceError reports that a raw value's structural kind does not match the
// coercer's expected shape, or that a contained element failed its own
// coercion. The failure is local to one attribute of one target: callers
// continue coercing unrelated targets.
type CoerceError struct {
	// Target is the label of the target being coerced, if known.
	Target string

	// Attribute is the attribute name being coerced, if known.
	Attribute string

	// Value is the offending raw value.
	Value any

	// Expected is the shape name of the coercer that rejected the value.
	Expected string

	// Err is the underlying element failure, if any.
	Err error
}

// Error implements the error interface.
func (e *CoerceError) Error() string {
	where := ""
	if e.Target != "" && e.Attribute != "" {
		where = fmt.Sprintf("%s.%s: ", e.Target, e.Attribute)
	} else if e.Attribute != "" {
		where = e.Attribute + ": "
	}
	msg := fmt.Sprintf("%scannot coerce %s to %s", where, describeRaw(e.Value), e.Expected)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying element failure.
func (e *CoerceError) Unwrap() error {
	return e.Err
}

// Located returns a copy of the error annotated with the target and
// attribute it occurred in. Non-coercion errors are wrapped.
func Located(err error, target, attribute string) error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CoerceError); ok {
		located := *ce
		located.Target = target
		located.Attribute = attribute
		return &located
	}
	return fmt.Errorf("%s.%s: %w", target, attribute, err)
}

// mismatch builds the standard shape-mismatch error.
func mismatch(value any, expected string) *CoerceError {
	return &CoerceError{Value: value, Expected: expected}
}

// elementFailure wraps a nested element's coercion failure.
func elementFailure(value any, expected string, err error) *CoerceError {
	return &CoerceError{Value: value, Expected: expected, Err: err}
}

// describeRaw renders a raw value for error messages, truncating long values.
func describeRaw(v any) string {
	s := fmt.Sprintf("%v (%T)", v, v)
	const maxLen = 120
	if len(s) > maxLen {
		s = s[:maxLen] + "…"
	}
	return s
}
