package commandstructure

import (
	"errors"
	"fmt"
	"image"
)

// Command defines the interface for all image transformation commands.
// A command carries its already validated parameters and applies exactly one operation.
type Command interface {
	Name() string
	Execute(img image.Image) (image.Image, error)
	// FilenameSuffix is appended to the source base name of the derived file.
	// It must be deterministic for a given set of parameters.
	FilenameSuffix() string
	// Parameters echoes the effective parameters back to the caller.
	Parameters() map[string]any
}

// CommandFactory is a function type that creates a command from request parameters
type CommandFactory func(params map[string]any) (Command, error)

var (
	// ErrUnknownCommand is returned by the registry when no factory exists for a name
	ErrUnknownCommand = errors.New("unknown command")
	// ErrOutOfBounds is returned when a region does not fit inside the source image
	ErrOutOfBounds = errors.New("region out of image bounds")
)

// ParamError reports a parameter that failed validation.
type ParamError struct {
	Message string
}

func (e *ParamError) Error() string {
	return e.Message
}

// NewParamError builds a ParamError from a format string
func NewParamError(format string, args ...any) error {
	return &ParamError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err was caused by bad caller input
func IsValidationError(err error) bool {
	var paramErr *ParamError
	return errors.As(err, &paramErr) || errors.Is(err, ErrOutOfBounds)
}
