// Package backyerrors defines Backy's error taxonomy: a small set of abstract
// failure kinds shared across every component, each carrying enough stage
// context for the orchestrators to log and clean up correctly.
package backyerrors

import "fmt"

// Kind enumerates the abstract failure categories a Backy component can raise.
type Kind string

const (
	KindConfiguration     Kind = "configuration_error"
	KindConnectionFailed  Kind = "connection_failed"
	KindExtractionFailed  Kind = "extraction_failed"
	KindCycleDetected     Kind = "cycle_detected"
	KindParseError        Kind = "parse_error"
	KindCorruptMetadata   Kind = "corrupt_metadata"
	KindCorruptPayload    Kind = "corrupt_payload"
	KindTrailingGarbage   Kind = "trailing_garbage"
	KindKeyNotFound       Kind = "key_not_found"
	KindKeyWrapFailed     Kind = "key_wrap_failed"
	KindKeyUnwrapFailed   Kind = "key_unwrap_failed"
	KindIntegrityMismatch Kind = "integrity_mismatch"
	KindMissingFile       Kind = "missing_file"
	KindCompressionFailed Kind = "compression_failed"
	KindStorageFailed     Kind = "storage_failed"
	KindConflictDetected  Kind = "conflict_detected"
	KindUnknownConflict   Kind = "unknown_conflict_mode"
)

// Error is the concrete error type raised by every Backy package. Stage,
// Feature and Filename are optional context; whichever applies to Kind is set.
type Error struct {
	Kind     Kind
	Stage    string
	Feature  string
	Filename string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Feature != "" {
		msg = fmt.Sprintf("%s[%s]", msg, e.Feature)
	}
	if e.Filename != "" {
		msg = fmt.Sprintf("%s(%s)", msg, e.Filename)
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("%s at stage %s", msg, e.Stage)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target carries the same Kind, so callers can use
// errors.Is(err, &backyerrors.Error{Kind: backyerrors.KindCycleDetected}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func WithStage(kind Kind, stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

func NewExtractionFailed(feature string, cause error) *Error {
	return &Error{Kind: KindExtractionFailed, Feature: feature, Cause: cause}
}

func NewCycleDetected(remaining int) *Error {
	return &Error{Kind: KindCycleDetected, Message: fmt.Sprintf("%d node(s) not resolved", remaining)}
}

func NewParseError(message string) *Error {
	return &Error{Kind: KindParseError, Message: message}
}

func NewCorruptMetadata(message string) *Error {
	return &Error{Kind: KindCorruptMetadata, Message: message}
}

func NewCorruptPayload(feature string, expected, actual int) *Error {
	return &Error{
		Kind:    KindCorruptPayload,
		Feature: feature,
		Message: fmt.Sprintf("expected %d bytes, got %d", expected, actual),
	}
}

func NewTrailingGarbage(bytes int) *Error {
	return &Error{Kind: KindTrailingGarbage, Message: fmt.Sprintf("%d trailing byte(s)", bytes)}
}

func NewKeyNotFound(identity string) *Error {
	return &Error{Kind: KindKeyNotFound, Message: identity}
}

func NewKeyWrapFailed(cause error) *Error {
	return &Error{Kind: KindKeyWrapFailed, Cause: cause}
}

func NewKeyUnwrapFailed(cause error) *Error {
	return &Error{Kind: KindKeyUnwrapFailed, Cause: cause}
}

func NewIntegrityMismatch(filename string) *Error {
	return &Error{Kind: KindIntegrityMismatch, Filename: filename}
}

func NewMissingFile(filename string) *Error {
	return &Error{Kind: KindMissingFile, Filename: filename}
}

func NewCompressionFailed(cause error) *Error {
	return &Error{Kind: KindCompressionFailed, Cause: cause}
}

func NewStorageFailed(cause error) *Error {
	return &Error{Kind: KindStorageFailed, Cause: cause}
}

func NewUnknownConflictMode(mode string) *Error {
	return &Error{Kind: KindUnknownConflict, Message: mode}
}

func NewConflictDetected(cause error) *Error {
	return &Error{Kind: KindConflictDetected, Cause: cause}
}

func NewConnectionFailed(cause error) *Error {
	return &Error{Kind: KindConnectionFailed, Cause: cause}
}

func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// IsRetryable reports whether a failure of this kind may succeed if retried
// (transient network/connection faults), as opposed to a permanent defect.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindConnectionFailed, KindStorageFailed:
		return true
	default:
		return false
	}
}

// IsPermanent is the complement of IsRetryable for any recognized *Error.
func IsPermanent(err error) bool {
	_, ok := err.(*Error)
	return ok && !IsRetryable(err)
}
