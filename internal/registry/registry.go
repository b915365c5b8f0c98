package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stacklet-io/stacklet/internal/template"
)

// PlaceholderName is the literal token meaning "derive this resource's
// display name". It may appear anywhere in a parameter mapping and is
// substituted exactly once per action invocation.
const PlaceholderName = "__resource_name__"

// Action names understood by the registry.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ArgType declares the coercion target for an argument value.
type ArgType int

const (
	TypeString ArgType = iota
	TypeBool
	TypeInt
)

// TransformContext carries deployment context into custom transforms.
type TransformContext struct {
	LogicalID string
	StackName string
	Region    string
	Partition string
	AccountID string

	// Resolve evaluates embedded reference expressions against the current
	// deployment state. A nil result means the dependency is not ready.
	Resolve func(v any) (any, error)
}

// TransformFunc builds a whole argument map from a resource's properties.
// Returning a nil map (with nil error) signals that the step should be
// skipped without error.
type TransformFunc func(props map[string]any, tc *TransformContext) (map[string]any, error)

// ValueFunc computes a single argument value from a resource's properties.
type ValueFunc func(props map[string]any, tc *TransformContext) (any, error)

// Source declares where one target argument comes from: a fallback chain of
// property names, the resource-name placeholder, or a computed value.
type Source struct {
	Keys  []string
	Name  bool
	Value ValueFunc
}

// From tries the given property names in order and takes the first present.
func From(keys ...string) Source { return Source{Keys: keys} }

// NameFallback tries the given property names, then falls back to the
// resource's derived display name.
func NameFallback(keys ...string) Source { return Source{Keys: keys, Name: true} }

// ResourceName always yields the derived display name.
func ResourceName() Source { return Source{Name: true} }

// Fn computes the argument with a custom function.
func Fn(f ValueFunc) Source { return Source{Value: f} }

// ParamSpec is a tagged variant: either a direct mapping of target argument
// names to sources, or a custom transform over the whole property set.
// Exactly one of the two fields is set.
type ParamSpec struct {
	Mapping   map[string]Source
	Transform TransformFunc
}

// Step names one provider operation and how to build its arguments.
// Steps within an action run in order; later steps may assume earlier
// steps' side effects.
type Step struct {
	Operation string
	Params    ParamSpec
	Defaults  map[string]any
	Types     map[string]ArgType
}

// PostContext is handed to post-create hooks: the primary step's resolved
// arguments and result, plus callbacks into the engine.
type PostContext struct {
	Resource *template.Resource
	Args     map[string]any
	Result   map[string]any
	Invoke   func(ctx context.Context, op string, args map[string]any) (map[string]any, error)
	Resolve  func(v any) (any, error)
}

// PostFunc attaches computed sub-resources after the primary calls succeed.
type PostFunc func(ctx context.Context, pc *PostContext) error

// Entry describes how one resource type is deployed.
type Entry struct {
	Create []Step
	Update []Step
	Delete []Step

	// Attributes maps template attribute names to provider attribute names
	// (e.g. Lambda "Arn" -> "FunctionArn").
	Attributes map[string]string

	// NameProperty is the type-specific property holding the resource name,
	// consulted when deriving the display name.
	NameProperty string

	// PhysicalID names the create-result key holding the physical identifier.
	// When empty (or absent from the result) the display name is used.
	PhysicalID string

	Post PostFunc
}

// Registry maps resource type strings to action specifications.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Default returns a registry pre-populated with the built-in catalogue.
func Default() *Registry {
	r := New()
	for t, e := range builtin() {
		r.Register(t, e)
	}
	return r
}

// Register adds or replaces the entry for a resource type.
func (r *Registry) Register(resourceType string, e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[resourceType] = e
}

// Lookup returns the entry for a resource type.
func (r *Registry) Lookup(resourceType string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[resourceType]
	return e, ok
}

// Deployable reports whether the type has a create action.
func (r *Registry) Deployable(resourceType string) bool {
	e, ok := r.Lookup(resourceType)
	return ok && len(e.Create) > 0
}

// Steps returns the ordered steps for the given action, or nil.
func (r *Registry) Steps(resourceType, action string) []Step {
	e, ok := r.Lookup(resourceType)
	if !ok {
		return nil
	}
	switch action {
	case ActionCreate:
		return e.Create
	case ActionUpdate:
		return e.Update
	case ActionDelete:
		return e.Delete
	}
	return nil
}

// Attribute translates a template attribute name to the provider attribute
// name for the given type. Unknown types or attributes pass through.
func (r *Registry) Attribute(resourceType, attr string) string {
	if e, ok := r.Lookup(resourceType); ok {
		if actual, ok := e.Attributes[attr]; ok {
			return actual
		}
	}
	return attr
}

// DisplayName derives a resource's name: the Name property, the
// type-specific name property, or the logical ID. The returned value may
// still contain unresolved reference expressions.
func (r *Registry) DisplayName(res *template.Resource) any {
	if v, ok := res.Properties["Name"]; ok && v != nil {
		return v
	}
	if e, ok := r.Lookup(res.Type); ok && e.NameProperty != "" {
		if v, ok := res.Properties[e.NameProperty]; ok && v != nil {
			return v
		}
	}
	return res.LogicalID
}

// ----------------------------------------------------------------------
// Parameter spec combinators.
// ----------------------------------------------------------------------

// SelectParameters keeps only the named properties.
func SelectParameters(names ...string) TransformFunc {
	return func(props map[string]any, _ *TransformContext) (map[string]any, error) {
		out := make(map[string]any)
		for _, n := range names {
			if v, ok := props[n]; ok && v != nil {
				out[n] = v
			}
		}
		return out, nil
	}
}

// RenameParams renames keys in the result of f (or of the identity transform
// when f is nil).
func RenameParams(f TransformFunc, renames map[string]string) TransformFunc {
	return func(props map[string]any, tc *TransformContext) (map[string]any, error) {
		out, err := applyOrCopy(f, props, tc)
		if out == nil || err != nil {
			return out, err
		}
		for old, new_ := range renames {
			v := out[old]
			delete(out, old)
			out[new_] = v
		}
		return out, nil
	}
}

// DumpJSONParams JSON-encodes the named arguments when they are maps or
// lists; APIs like IAM take policy documents as strings.
func DumpJSONParams(f TransformFunc, names ...string) TransformFunc {
	return func(props map[string]any, tc *TransformContext) (map[string]any, error) {
		out, err := applyOrCopy(f, props, tc)
		if out == nil || err != nil {
			return out, err
		}
		for _, n := range names {
			switch out[n].(type) {
			case map[string]any, []any:
				enc, err := json.Marshal(out[n])
				if err != nil {
					return nil, fmt.Errorf("encoding %s: %w", n, err)
				}
				out[n] = string(enc)
			}
		}
		return out, nil
	}
}

// ParamDefaults fills absent or empty arguments in the result of f.
func ParamDefaults(f TransformFunc, defaults map[string]any) TransformFunc {
	return func(props map[string]any, tc *TransformContext) (map[string]any, error) {
		out, err := applyOrCopy(f, props, tc)
		if out == nil || err != nil {
			return out, err
		}
		for k, v := range defaults {
			if cur, ok := out[k]; !ok || cur == nil || cur == "" {
				out[k] = v
			}
		}
		return out, nil
	}
}

// ListToDict flattens a list property of key/value entries into a map, the
// shape tag lists take in several APIs.
func ListToDict(paramName, keyAttr, valueAttr string) ValueFunc {
	return func(props map[string]any, _ *TransformContext) (any, error) {
		entries, _ := props[paramName].([]any)
		if len(entries) == 0 {
			return nil, nil
		}
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			key, _ := m[keyAttr].(string)
			if key != "" {
				out[key] = m[valueAttr]
			}
		}
		return out, nil
	}
}

// SelectAttributes picks the named properties and stringifies each value
// (JSON for maps/lists), for APIs taking map[string]string attribute sets.
func SelectAttributes(names ...string) ValueFunc {
	return func(props map[string]any, _ *TransformContext) (any, error) {
		out := make(map[string]any)
		for _, n := range names {
			v, ok := props[n]
			if !ok || v == nil {
				continue
			}
			out[n] = Stringify(v)
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	}
}

// Stringify renders a value the way attribute maps expect: JSON for
// maps/lists, plain formatting otherwise.
func Stringify(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		enc, _ := json.Marshal(v)
		return string(enc)
	}
	return fmt.Sprintf("%v", v)
}

func applyOrCopy(f TransformFunc, props map[string]any, tc *TransformContext) (map[string]any, error) {
	if f != nil {
		return f(props, tc)
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}
