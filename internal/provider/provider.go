package provider

import (
	"context"
	"errors"
)

// ErrNotFound is the distinguished "resource does not exist" outcome from
// FetchState. The engine treats it as "not yet deployed", never as a failure.
var ErrNotFound = errors.New("resource not found")

// Config carries provider-level settings.
type Config struct {
	Region    string
	Endpoint  string // optional endpoint override for emulation targets
	AccountID string
}

// FetchRequest identifies a resource whose current provider state should be
// looked up.
type FetchRequest struct {
	Type       string
	LogicalID  string
	PhysicalID string
	StackName  string

	// Name is the resource's resolved display name, when known.
	Name string

	// Properties is the resource's raw (unresolved) property tree.
	Properties map[string]any

	// Resolve evaluates reference expressions embedded in properties against
	// current deployment state. May be nil.
	Resolve func(v any) (any, error)
}

// Interface is the provider collaborator: a synchronous endpoint for API
// operations and state lookups.
type Interface interface {
	// Invoke runs a named provider operation with the given argument map and
	// returns a flattened result map.
	Invoke(ctx context.Context, operation string, args map[string]any) (map[string]any, error)

	// FetchState returns the current attribute snapshot of a resource. The
	// snapshot always contains "PhysicalResourceId". Returns ErrNotFound
	// (possibly wrapped) when the resource does not exist.
	FetchState(ctx context.Context, req *FetchRequest) (map[string]any, error)

	// StackParameter looks up a parameter of an already-deployed stack.
	StackParameter(ctx context.Context, stackName, name string) (string, bool, error)
}

// IsNotFound reports whether err represents the expected "does not exist"
// outcome.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
