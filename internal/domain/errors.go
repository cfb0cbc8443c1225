package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidMode        = errors.New("invalid generation mode")
	ErrMissingChainInput  = errors.New("previous segment has no last frame")
	ErrProviderFailure    = errors.New("provider failure")
	ErrGenerationInFlight = errors.New("generation already in flight")
	ErrUnknownModel       = errors.New("unknown model")
	ErrUnsupportedScale   = errors.New("unsupported scale factor")
	ErrJobTerminal        = errors.New("job already in terminal state")
)
