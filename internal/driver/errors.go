package driver

import "errors"

// Sentinel errors for the semantic kinds §7 distinguishes. Protocol
// drivers wrap these with fmt.Errorf("...: %w", ErrX) so callers can
// errors.Is regardless of which driver produced the failure.
var (
	ErrConnection       = errors.New("driver: connection error")
	ErrRead             = errors.New("driver: read error")
	ErrReadTimeout      = errors.New("driver: read timeout")
	ErrWrite            = errors.New("driver: write error")
	ErrUnsupportedWrite = errors.New("driver: write not supported")
	ErrNotConnected     = errors.New("driver: not connected")
)
