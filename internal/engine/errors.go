package engine

import "fmt"

// UnresolvedReferenceError means a Join or Sub operand could not be resolved
// because a dependency is not deployed yet. The resource is retried on the
// next iteration.
type UnresolvedReferenceError struct {
	Expr string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("cannot resolve reference: %s", e.Expr)
}

// UnknownResourceTypeError means the action registry has no entry for the
// type. The resource is skipped permanently; the condition cannot change
// within a run.
type UnknownResourceTypeError struct {
	Type string
}

func (e *UnknownResourceTypeError) Error() string {
	return fmt.Sprintf("resource type %s not supported", e.Type)
}

// ActionNotImplementedError means the type is known but has no specification
// for the requested action.
type ActionNotImplementedError struct {
	Type   string
	Action string
}

func (e *ActionNotImplementedError) Error() string {
	return fmt.Sprintf("action %q for resource type %s not implemented", e.Action, e.Type)
}

// ProviderCallError wraps a failed provider operation.
type ProviderCallError struct {
	LogicalID string
	Operation string
	Err       error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.LogicalID, e.Err)
}

func (e *ProviderCallError) Unwrap() error { return e.Err }
