package sink

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProperty = errors.New("sink: unknown property")
	ErrReadOnly        = errors.New("sink: property is read-only")
	ErrWriteOnly       = errors.New("sink: property is write-only")
	ErrInvalidValue    = errors.New("sink: invalid property value")
	ErrNoRegistry      = errors.New("sink: no coordinator registry")
)

// PropertyError reports a failed property access.
type PropertyError struct {
	Name string
	Err  error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("sink: property %q: %v", e.Name, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

func invalidValue(value any) error {
	return fmt.Errorf("%w: %v (%T)", ErrInvalidValue, value, value)
}
