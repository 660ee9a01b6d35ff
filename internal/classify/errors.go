package classify

import (
	"fmt"
	"strings"

	"micromanagerr/internal/evidence"
	"micromanagerr/internal/services"
)

// ConflictValue is one side of a disagreement.
type ConflictValue struct {
	Source evidence.Source `json:"source"`
	Value  string          `json:"value"`
}

// ConflictError reports evidence that disagrees on a fact that must not be
// guessed. It matches services.ErrConflictingEvidence and carries every
// conflicting value with its source.
type ConflictError struct {
	Field  string
	Values []ConflictValue
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = fmt.Sprintf("%s=%s", v.Source, v.Value)
	}
	return fmt.Sprintf("conflicting %s: %s", e.Field, strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error { return services.ErrConflictingEvidence }
