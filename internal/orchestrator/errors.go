package orchestrator

import "errors"

var (
	ErrInvalidDefinition = errors.New("orchestrator: invalid sensor definition")
	ErrStartFailed       = errors.New("orchestrator: sensor failed to start")
	ErrNotFound          = errors.New("orchestrator: sensor not found")
	ErrNotRunning        = errors.New("orchestrator: driver not running")
)
