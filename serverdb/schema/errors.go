package schema

import (
	"fmt"
	"strings"

	"github.com/teranos/serveradmin/errors"
)

// UnknownAttributeError is returned when an attribute id is neither special
// nor defined for the involved servertypes.
type UnknownAttributeError struct {
	AttributeID string
	Servertypes []string // the servertypes searched, empty when the id is undefined everywhere
}

func (e *UnknownAttributeError) Error() string {
	if len(e.Servertypes) > 0 {
		return fmt.Sprintf("attribute %q is not defined for servertype %s", e.AttributeID, strings.Join(e.Servertypes, ", "))
	}
	return fmt.Sprintf("attribute %q does not exist", e.AttributeID)
}

func (e *UnknownAttributeError) Unwrap() error { return errors.ErrUnknownAttribute }

// UnknownServertypeError is returned for a servertype id that does not exist.
type UnknownServertypeError struct {
	ServertypeID string
}

func (e *UnknownServertypeError) Error() string {
	return fmt.Sprintf("servertype %q does not exist", e.ServertypeID)
}

func (e *UnknownServertypeError) Unwrap() error { return errors.ErrUnknownServertype }

// InvalidValueError is returned when a value does not coerce to its
// attribute's type or fails its regular expression.
type InvalidValueError struct {
	AttributeID string
	Value       string
	Reason      string
}

func (e *InvalidValueError) Error() string {
	if e.AttributeID == "" {
		return fmt.Sprintf("invalid value %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid value %q for attribute %q: %s", e.Value, e.AttributeID, e.Reason)
}

func (e *InvalidValueError) Unwrap() error { return errors.ErrInvalidValue }

func invalid(raw, format string, args ...any) *InvalidValueError {
	return &InvalidValueError{Value: raw, Reason: fmt.Sprintf(format, args...)}
}

// withAttribute stamps the attribute id onto an InvalidValueError.
func withAttribute(err error, attributeID string) error {
	var ive *InvalidValueError
	if errors.As(err, &ive) && ive.AttributeID == "" {
		ive.AttributeID = attributeID
	}
	return err
}
