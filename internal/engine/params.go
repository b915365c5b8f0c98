package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stacklet-io/stacklet/internal/registry"
	"github.com/stacklet-io/stacklet/internal/template"
)

// buildArguments turns a resource's properties into the argument map for one
// action step. A nil map with nil error means the step is skipped. The chain
// order is a correctness invariant: sources, placeholders, defaults,
// reference resolution, account-ID rewriting, type coercion, nil stripping.
func (e *Engine) buildArguments(ctx context.Context, sc *StackContext, tmpl *template.Template, res *template.Resource, props map[string]any, step registry.Step) (map[string]any, error) {
	tc := &registry.TransformContext{
		LogicalID: res.LogicalID,
		StackName: sc.StackName,
		Region:    sc.Region,
		Partition: sc.Partition,
		AccountID: sc.AccountID,
		Resolve: func(v any) (any, error) {
			return e.Resolve(ctx, sc, tmpl, v)
		},
	}

	// 1. Source selection.
	args, err := selectSources(step.Params, props, tc)
	if err != nil {
		return nil, err
	}
	if args == nil {
		return nil, nil // custom transform signalled skip
	}

	// 2. Placeholder substitution: the display name is resolved at most once
	// per invocation so repeated placeholders stay consistent.
	var cached any
	displayName := func() (any, error) {
		if cached != nil {
			return cached, nil
		}
		name, err := e.Resolve(ctx, sc, tmpl, e.actions.DisplayName(res))
		if err != nil {
			return nil, err
		}
		if name == nil || name == "" {
			name = res.LogicalID
		}
		cached = name
		return cached, nil
	}
	args, err = substitutePlaceholders(args, displayName)
	if err != nil {
		return nil, err
	}

	// 3. Defaults for absent or empty arguments.
	for k, v := range step.Defaults {
		if cur, ok := args[k]; !ok || cur == nil || cur == "" {
			args[k] = v
		}
	}

	// 4. Reference resolution plus boolean-string coercion.
	for k, v := range args {
		if v != nil {
			resolved, err := e.Resolve(ctx, sc, tmpl, v)
			if err != nil {
				return nil, err
			}
			v = resolved
			args[k] = v
		}
		if s, ok := v.(string); ok {
			switch strings.ToLower(s) {
			case "true":
				args[k] = true
			case "false":
				args[k] = false
			}
		}
	}

	// 5. Account identifiers embedded in ARNs are rewritten to the target
	// account; upstream fixtures carry foreign account IDs.
	rewritten, _ := rewriteAccountIDs(args, sc.AccountID).(map[string]any)
	args = rewritten

	// 6. Declared type coercion.
	for k, t := range step.Types {
		if v, ok := args[k]; ok && v != nil {
			args[k] = coerce(v, t)
		}
	}

	// 7. Nil stripping: provider APIs reject explicit nulls.
	stripped, _ := stripNils(args).(map[string]any)
	return stripped, nil
}

// selectSources builds the initial argument map from a param spec.
func selectSources(spec registry.ParamSpec, props map[string]any, tc *registry.TransformContext) (map[string]any, error) {
	if spec.Transform != nil {
		return spec.Transform(props, tc)
	}
	if spec.Mapping == nil {
		// No spec at all: pass the properties through unchanged.
		out := make(map[string]any, len(props))
		for k, v := range props {
			out[k] = v
		}
		return out, nil
	}

	args := make(map[string]any, len(spec.Mapping))
	for target, src := range spec.Mapping {
		if src.Value != nil {
			v, err := src.Value(props, tc)
			if err != nil {
				return nil, err
			}
			if v != nil {
				args[target] = v
			}
			continue
		}
		found := false
		for _, key := range src.Keys {
			if v, ok := props[key]; ok && v != nil {
				args[target] = v
				found = true
				break
			}
		}
		if !found && src.Name {
			args[target] = registry.PlaceholderName
		}
	}
	return args, nil
}

// substitutePlaceholders replaces every name-placeholder token, pulling the
// display name lazily through the caching callback.
func substitutePlaceholders(v map[string]any, name func() (any, error)) (map[string]any, error) {
	replaced, err := replacePlaceholder(v, name)
	if err != nil {
		return nil, err
	}
	out, _ := replaced.(map[string]any)
	return out, nil
}

func replacePlaceholder(v any, name func() (any, error)) (any, error) {
	switch val := v.(type) {
	case string:
		if val == registry.PlaceholderName {
			return name()
		}
		return val, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			r, err := replacePlaceholder(elem, name)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			r, err := replacePlaceholder(elem, name)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

// arnAccount matches the account segment of an ARN, anywhere in a string:
// ARNs also arrive embedded in JSON-encoded policy documents.
var arnAccount = regexp.MustCompile(`(arn:[^:\s"]*:[^:\s"]*:[^:\s"]*:)(\d{12}):`)

// rewriteAccountIDs rewrites the account segment of every ARN in the tree to
// the target account identifier.
func rewriteAccountIDs(v any, accountID string) any {
	switch val := v.(type) {
	case string:
		return arnAccount.ReplaceAllString(val, "${1}"+accountID+":")
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = rewriteAccountIDs(elem, accountID)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = rewriteAccountIDs(elem, accountID)
		}
		return out
	}
	return v
}

// coerce casts a value to its declared type with permissive parsing.
func coerce(v any, t registry.ArgType) any {
	switch t {
	case registry.TypeBool:
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return strings.EqualFold(b, "true")
		}
		return v
	case registry.TypeInt:
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return i
			}
		}
		return v
	case registry.TypeString:
		if _, ok := v.(string); ok {
			return v
		}
		return fmt.Sprintf("%v", v)
	}
	return v
}

// stripNils removes nil-valued map entries recursively. Stripping an
// already-stripped tree is a no-op.
func stripNils(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			if elem == nil {
				continue
			}
			out[k] = stripNils(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = stripNils(elem)
		}
		return out
	}
	return v
}
