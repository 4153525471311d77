package domain

import (
	"errors"
	"sort"
	"strings"
)

// Messages returned to callers. They are part of the public contract.
const (
	MsgMissingAPIKey = "API Key header not found!"
	MsgInvalidAPIKey = "Invalid API Key!"
	MsgSystemError   = "System Error!"
)

var (
	// ErrUnauthorized is the parent of every API key failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingAPIKey signals a guarded request without the x-api-key header.
	ErrMissingAPIKey error = &authError{msg: MsgMissingAPIKey}
	// ErrInvalidAPIKey signals a guarded request with a non-matching key.
	ErrInvalidAPIKey error = &authError{msg: MsgInvalidAPIKey}
	// ErrRender hides every rendering engine failure behind one generic message.
	ErrRender = errors.New(MsgSystemError)
)

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

func (e *authError) Is(target error) bool { return target == ErrUnauthorized }

// SchemaField is the message key for problems with the payload as a whole.
const SchemaField = "_schema"

// ValidationError carries field-level messages for a rejected payload.
type ValidationError struct {
	Messages map[string][]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Messages))
	for f := range e.Messages {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Messages[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Messages == nil {
		e.Messages = make(map[string][]string)
	}
	e.Messages[field] = append(e.Messages[field], msg)
}

// AsValidation returns the *ValidationError in err's chain, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
