package scheduler

import (
	"errors"
	"fmt"

	"github.com/researchapps/job-maker/internal/catalog"
)

// Validation failures. Every *ValidationError returned by Generate unwraps
// to exactly one of these.
var (
	// ErrMissingCluster indicates no cluster was selected
	ErrMissingCluster = errors.New("missing cluster")

	// ErrInvalidTime indicates the requested walltime is zero or negative
	ErrInvalidTime = errors.New("invalid time")

	// ErrTooFewNodes indicates fewer than one node was requested
	ErrTooFewNodes = errors.New("too few nodes")

	// ErrTooManyNodes indicates more nodes than the partition allows
	ErrTooManyNodes = errors.New("too many nodes")

	// ErrUnknownCluster indicates the cluster is not in the catalog
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrUnknownPartition indicates the partition is not defined for the cluster
	ErrUnknownPartition = errors.New("unknown partition")

	// ErrNoDefaultPartition indicates no partition was chosen and the cluster has no default
	ErrNoDefaultPartition = errors.New("no default partition")

	// ErrQosNotAllowed indicates the QoS is not accepted by the partition
	ErrQosNotAllowed = errors.New("qos not allowed")

	// ErrInvalidMemory indicates a negative memory request
	ErrInvalidMemory = errors.New("invalid memory")

	// ErrInvalidDirective indicates a field that would break or override the
	// generated "#SBATCH" header
	ErrInvalidDirective = errors.New("invalid directive")

	// ErrCatalogUnavailable indicates the cluster catalog has not been loaded
	ErrCatalogUnavailable = catalog.ErrCatalogUnavailable
)

// ValidationError is a user-correctable problem with a Form.
type ValidationError struct {
	Kind    error  // One of the Err* sentinels above
	Field   string // Form field at fault (e.g. "nodes", "partition")
	Message string // Message shown to the user
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Is allows errors.Is to match any ValidationError
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

func newValidationError(kind error, field, format string, a ...interface{}) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Field:   field,
		Message: fmt.Sprintf(format, a...),
	}
}

// ParseError represents an error parsing scheduler directives
type ParseError struct {
	Line    int    // Line number where error occurred
	Content string // Line content
	Reason  string // Reason for parse failure
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("SLURM parse error at line %d (%s): %s", e.Line, e.Content, e.Reason)
	}
	return fmt.Sprintf("SLURM parse error: %s", e.Reason)
}

// NewParseError creates a new ParseError
func NewParseError(line int, content string, reason string) *ParseError {
	return &ParseError{
		Line:    line,
		Content: content,
		Reason:  reason,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsParseError checks if an error is a ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
