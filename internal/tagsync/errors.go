package tagsync

import (
	"fmt"

	"micromanagerr/internal/services"
)

// OperationError reports one failed remote operation. It matches
// services.ErrTagOperationFailed and the underlying cause.
type OperationError struct {
	Op  TagOperation
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() []error {
	return []error{services.ErrTagOperationFailed, e.Err}
}
