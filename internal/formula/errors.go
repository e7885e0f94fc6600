package formula

import "errors"

// Sentinel errors for the four evaluation outcomes §4.3/§7 distinguish.
var (
	ErrInvalidFormula  = errors.New("formula: invalid expression")
	ErrDivisionByZero  = errors.New("formula: division by zero")
	ErrTypeError       = errors.New("formula: type error")
	ErrRuntimeError    = errors.New("formula: runtime error")
)

// wrap attaches a sentinel as the error chain root while keeping the
// specific message, so callers can errors.Is(err, formula.ErrDivisionByZero).
func wrap(sentinel error, detail string) error {
	if detail == "" {
		return sentinel
	}
	return &formulaError{sentinel: sentinel, detail: detail}
}

type formulaError struct {
	sentinel error
	detail   string
}

func (e *formulaError) Error() string { return e.sentinel.Error() + ": " + e.detail }
func (e *formulaError) Unwrap() error  { return e.sentinel }
