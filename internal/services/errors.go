package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	// ErrMalformedProbeOutput marks probe output missing or corrupting the
	// fields required for its source. The scan for that file is aborted.
	ErrMalformedProbeOutput = errors.New("malformed probe output")
	// ErrConflictingEvidence marks disagreement on a fact that must not be
	// guessed (for example two different Dolby Vision profiles).
	ErrConflictingEvidence = errors.New("conflicting evidence")
	// ErrRemoteStateUnavailable marks a Sonarr/Radarr instance that could not
	// be reached or authenticated. Classification results remain valid.
	ErrRemoteStateUnavailable = errors.New("remote state unavailable")
	// ErrTagOperationFailed marks a single create/attach/detach failure.
	ErrTagOperationFailed = errors.New("tag operation failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether err describes a condition that may clear on its
// own (remote outage, timeout, transient tool failure). Malformed output,
// conflicting evidence, and validation failures need manual intervention.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrMalformedProbeOutput),
		errors.Is(err, ErrConflictingEvidence),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, ErrRemoteStateUnavailable),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransient),
		errors.Is(err, ErrTagOperationFailed):
		return true
	default:
		return false
	}
}

// Outcome maps an error onto a short label used in metrics and CLI output.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedProbeOutput):
		return "malformed"
	case errors.Is(err, ErrConflictingEvidence):
		return "conflict"
	case errors.Is(err, ErrRemoteStateUnavailable):
		return "remote_unavailable"
	case errors.Is(err, ErrTagOperationFailed):
		return "operation_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "tool_error"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return "invalid"
	default:
		return "error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
