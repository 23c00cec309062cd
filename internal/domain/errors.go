package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCollaboratorTimeout     = errors.New("collaborator timed out")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrMalformedResponse       = errors.New("malformed collaborator response")
	ErrUnrecognizedDocType     = errors.New("unrecognized document type")
	ErrUnknownDocType          = errors.New("no schema registered for document type")
	ErrSchemaMismatch          = errors.New("field not in schema")
	ErrConfigurationMissing    = errors.New("configuration missing")
	ErrInvalidConfiguration    = errors.New("invalid configuration")
	ErrUnsupportedFileType     = errors.New("unsupported file type")
	ErrEmptyDocument           = errors.New("document has no content")
	ErrFileTooLarge            = errors.New("file exceeds maximum allowed size")
	ErrRecordNotFound          = errors.New("record not found")
)

// CollaboratorError wraps a failure from an external collaborator (classifier, OCR, extractor).
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError classifies err into the collaborator taxonomy. Deadline errors
// become ErrCollaboratorTimeout, anything not already classified becomes
// ErrCollaboratorUnavailable. Already-wrapped collaborator errors are returned as is.
func NewCollaboratorError(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrCollaboratorTimeout):
		err = fmt.Errorf("%w: %w", ErrCollaboratorTimeout, err)
	case errors.Is(err, ErrCollaboratorTimeout),
		errors.Is(err, ErrCollaboratorUnavailable),
		errors.Is(err, ErrMalformedResponse),
		errors.Is(err, ErrUnrecognizedDocType),
		errors.Is(err, context.Canceled):
	default:
		err = fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err)
	}
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}

// SkippedRule records a validation rule that was not evaluated because the fields it
// needs are absent. It is informational and never counted as a pass or a failure.
type SkippedRule struct {
	RuleID  string   `json:"rule_id"`
	Missing []string `json:"missing,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Note renders the skip as a QA note.
func (s SkippedRule) Note() string {
	switch {
	case len(s.Missing) > 0:
		return fmt.Sprintf("rule %s skipped: missing %s", s.RuleID, strings.Join(s.Missing, ", "))
	case s.Reason != "":
		return fmt.Sprintf("rule %s skipped: %s", s.RuleID, s.Reason)
	default:
		return fmt.Sprintf("rule %s skipped", s.RuleID)
	}
}
