package telemetry

import (
	"errors"
	"fmt"
)

// ErrUnknownTopic vrací pipeline pro zprávy, jejichž topic neodpovídá žádnému známému tvaru.
var ErrUnknownTopic = errors.New("unknown topic")

// DecodeError znamená, že payload nejde vůbec rozparsovat jako JSON objekt.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("payload decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError znamená, že JSON je v pořádku, ale chybí nebo je neplatné konkrétní pole.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// DropReason převede chybu na krátký label pro metriky.
func DropReason(err error) string {
	var decodeErr *DecodeError
	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrUnknownTopic):
		return "unknown_topic"
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &validationErr):
		return "validation_error"
	default:
		return "other"
	}
}
