package predict

import (
	"errors"
	"fmt"
	"strings"
)

// GenericFailureMessage is shown whenever the service's structured error is unavailable.
const GenericFailureMessage = "Failed to get prediction"

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnrecognizedResult = errors.New("unrecognized result")
)

type Reason string

const (
	NotANumber       Reason = "not_a_number"
	MissingSelection Reason = "missing_selection"
	InvalidSelection Reason = "invalid_selection"
	NoFileSelected   Reason = "no_file_selected"
)

// ValidationError is local: it never reaches the network.
type ValidationError struct {
	Reason  Reason
	Field   string
	Label   string
	Options []string
}

func (e *ValidationError) Error() string {
	label := e.Label
	if label == "" {
		label = e.Field
	}
	switch e.Reason {
	case NotANumber:
		return fmt.Sprintf("%s must be a number", label)
	case MissingSelection:
		return fmt.Sprintf("please select %s", label)
	case InvalidSelection:
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(e.Options, ", "))
	case NoFileSelected:
		return "please select an image first"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ServiceError carries the error the service reported with success=false.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

// TransportError means the request could not be completed or its response parsed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("prediction %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessage maps a submission error to the text shown to the user.
func UserMessage(err error) string {
	var (
		ve *ValidationError
		se *ServiceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &se):
		return se.Message
	case errors.Is(err, ErrUnrecognizedResult):
		return ErrUnrecognizedResult.Error()
	default:
		return GenericFailureMessage
	}
}
