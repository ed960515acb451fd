package audio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCaptureDenied reports that the platform refused access to the input
// device. It is the only capture failure the application reacts to.
var ErrCaptureDenied = errors.New("audio: capture access denied")

var ErrUnsupportedConstraint = errors.New("audio: unsupported capture constraint")

// Names of the two denial variants. NotAllowed is what current hosts
// report; PermissionDenied is the older spelling.
const (
	DeniedNotAllowed       = "NotAllowedError"
	DeniedPermissionDenied = "PermissionDeniedError"
)

// DeniedError is a named capture failure. Only the two denial names match
// ErrCaptureDenied with errors.Is.
type DeniedError struct {
	Name string
	Err  error
}

func (e *DeniedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("audio: capture denied (%s)", e.Name)
	}
	return fmt.Sprintf("audio: capture denied (%s): %v", e.Name, e.Err)
}

func (e *DeniedError) Unwrap() []error {
	var errs []error
	if e.Name == DeniedNotAllowed || e.Name == DeniedPermissionDenied {
		errs = append(errs, ErrCaptureDenied)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsDenied reports whether err is a capture denial of either variant.
func IsDenied(err error) bool {
	return errors.Is(err, ErrCaptureDenied)
}

// classifyStreamError maps PortAudio failures that mean "the OS would not
// give us the device" onto DeniedError.
func classifyStreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "device unavailable"),
		strings.Contains(msg, "not permitted"),
		strings.Contains(msg, "not allowed"):
		return &DeniedError{Name: DeniedNotAllowed, Err: fmt.Errorf("%s: %w", op, err)}
	case strings.Contains(msg, "permission"),
		strings.Contains(msg, "unanticipated host error"):
		return &DeniedError{Name: DeniedPermissionDenied, Err: fmt.Errorf("%s: %w", op, err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "PaErrorCode -9983") || strings.Contains(strings.ToLower(msg), "stream is stopped")
}
