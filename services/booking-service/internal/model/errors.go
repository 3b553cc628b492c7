package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrValidation        = errors.New("validation failed")
	ErrSlotUnavailable   = errors.New("time slot is not offered on this date")

	ErrNotFound = errors.New("not found")

	ErrSlotAlreadyBooked = errors.New("time slot is already booked")
	ErrDuplicateDate     = errors.New("date exception already exists for this date")
)

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassNotFound
	ClassConflict
)

func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassInternal
	case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrDuplicateDate):
		return ClassConflict
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrInvalidDay),
		errors.Is(err, ErrInvalidTimeFormat),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrSlotUnavailable):
		return ClassValidation
	default:
		return ClassInternal
	}
}

// Code is the stable machine-readable name of an error for API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "SLOT_ALREADY_BOOKED"
	case errors.Is(err, ErrDuplicateDate):
		return "DUPLICATE_DATE"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidDay):
		return "INVALID_DAY"
	case errors.Is(err, ErrInvalidTimeFormat):
		return "INVALID_TIME_FORMAT"
	case errors.Is(err, ErrInvalidDate):
		return "INVALID_DATE"
	case errors.Is(err, ErrInvalidStatus):
		return "INVALID_STATUS"
	case errors.Is(err, ErrSlotUnavailable):
		return "SLOT_UNAVAILABLE"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL"
	}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the offending fields and matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	msg := ErrValidation.Error() + ":"
	for i, f := range e.Fields {
		if i > 0 {
			msg += ";"
		}
		msg += fmt.Sprintf(" %s %s", f.Field, f.Message)
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
