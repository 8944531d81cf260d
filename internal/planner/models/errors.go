package models

import (
	"errors"
	"fmt"
)

// ============================================================
// Errors
// ============================================================

var (
	// ErrValidation: нарушение инвариантов модели.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound: обращение к несуществующему плану, коммиту или сущности.
	ErrNotFound = errors.New("not found")
	// ErrConflict: ожидаемый head не совпал с фактическим.
	ErrConflict = errors.New("conflict")
	// ErrDuplicateID: повтор идентификатора внутри одной коллекции.
	// Является частным случаем ErrValidation.
	ErrDuplicateID = fmt.Errorf("%w: duplicate id", ErrValidation)
)

// ValidationError описывает конкретное нарушение. errors.Is(err, ErrValidation) == true.
type ValidationError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := "validation failed: " + e.Entity
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	return msg + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(entity, id, field, reason string, args ...any) error {
	return &ValidationError{
		Entity: entity,
		ID:     id,
		Field:  field,
		Reason: fmt.Sprintf(reason, args...),
	}
}

func notFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

func duplicate(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrDuplicateID, entity, id)
}
