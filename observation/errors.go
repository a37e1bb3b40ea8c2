package observation

import "errors"

var (
	ErrNotCollection   = errors.New("observation: not an observable collection")
	ErrNotSettable     = errors.New("observation: property is not settable")
	ErrIndexOutOfRange = errors.New("observation: index out of range")
	ErrTypeMismatch    = errors.New("observation: value type mismatch")
	ErrReadOnly        = errors.New("observation: read-only property")
)
