package ancestry

import "fmt"

// FormatError reports a path value that does not match the
// slash-joined-non-negative-integers grammar.
type FormatError struct {
	Raw string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed ancestry path %q", e.Raw)
}

// UnpersistedNodeError reports a child-path request for a node without an
// assigned id. Programmer error: persist the node first.
type UnpersistedNodeError struct{}

func (e *UnpersistedNodeError) Error() string {
	return "node has no assigned id; child path requires a persisted node"
}

// ConfigurationError reports invalid schema configuration or use of a
// feature the schema does not enable (depth combinators without caching).
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "ancestry configuration: " + e.Reason
}

// ValidationError is surfaced through the store's validation hook and blocks
// the save; the caller may fix the record and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// DeletionRestrictedError vetoes deletion of a node that still has children
// under the restrict orphan strategy.
type DeletionRestrictedError struct {
	NodeID int64
}

func (e *DeletionRestrictedError) Error() string {
	return fmt.Sprintf("node %d has children; deletion restricted", e.NodeID)
}

// IntegrityKind classifies integrity violations.
type IntegrityKind string

const (
	MalformedPath     IntegrityKind = "malformed_path"
	DanglingReference IntegrityKind = "dangling_reference"
	ConflictingParent IntegrityKind = "conflicting_parent"
)

// IntegrityError is raised by CheckIntegrity for the first violation found.
// NodeID is the record whose scan surfaced the violation. Raw carries the
// offending path value for malformed_path; Missing the absent ancestor id
// for dangling_reference; Expected/Found the disagreeing parent ids (nil
// meaning root) for conflicting_parent.
type IntegrityError struct {
	Kind     IntegrityKind
	NodeID   int64
	Raw      string
	Missing  int64
	Subject  int64
	Expected *int64
	Found    *int64
}

func (e *IntegrityError) Error() string {
	switch e.Kind {
	case MalformedPath:
		return fmt.Sprintf("integrity: node %d has malformed path %q", e.NodeID, e.Raw)
	case DanglingReference:
		return fmt.Sprintf("integrity: node %d references missing ancestor %d", e.NodeID, e.Missing)
	case ConflictingParent:
		return fmt.Sprintf("integrity: node %d records parent %s for %d, previously %s",
			e.NodeID, formatParent(e.Found), e.Subject, formatParent(e.Expected))
	}
	return fmt.Sprintf("integrity: node %d: %s", e.NodeID, e.Kind)
}

func formatParent(p *int64) string {
	if p == nil {
		return "root"
	}
	return fmt.Sprintf("%d", *p)
}
