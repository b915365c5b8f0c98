package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/stacklet-io/stacklet/internal/logging"
	"github.com/stacklet-io/stacklet/internal/provider"
	"github.com/stacklet-io/stacklet/internal/template"
)

// Pseudo-parameters resolvable from the stack context alone.
const (
	pseudoRegion    = "AWS::Region"
	pseudoPartition = "AWS::Partition"
	pseudoStackName = "AWS::StackName"
)

// physicalIDAttr is the default attribute a bare Ref resolves to.
const physicalIDAttr = "PhysicalResourceId"

// Resolve evaluates every reference expression embedded in value against the
// current deployment state and returns a new tree; the input is never
// mutated. A Ref or GetAtt to an undeployed resource resolves to nil, which
// callers must treat as "not ready". The only side effect is populating the
// state snapshot cache of resources it touches.
func (e *Engine) Resolve(ctx context.Context, sc *StackContext, tmpl *template.Template, value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 1 {
			for key, arg := range v {
				switch strings.ToLower(key) {
				case "ref":
					name, ok := arg.(string)
					if !ok {
						return nil, fmt.Errorf("Ref target must be a string, got %T", arg)
					}
					return e.resolveRef(ctx, sc, tmpl, name, physicalIDAttr)
				case "fn::getatt":
					return e.resolveGetAtt(ctx, sc, tmpl, arg)
				case "fn::join":
					return e.resolveJoin(ctx, sc, tmpl, arg)
				case "fn::sub":
					return e.resolveSub(ctx, sc, tmpl, arg)
				}
			}
		}
		out := make(map[string]any, len(v))
		for k, elem := range v {
			resolved, err := e.Resolve(ctx, sc, tmpl, elem)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := e.Resolve(ctx, sc, tmpl, elem)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	}
	return value, nil
}

// resolveRef resolves a Ref or GetAtt target to the named attribute.
func (e *Engine) resolveRef(ctx context.Context, sc *StackContext, tmpl *template.Template, ref, attr string) (any, error) {
	switch ref {
	case pseudoRegion:
		return sc.Region, nil
	case pseudoPartition:
		return sc.Partition, nil
	case pseudoStackName:
		return sc.StackName, nil
	}

	if v, ok := tmpl.Parameters[ref]; ok {
		return v, nil
	}

	res := tmpl.Resource(ref)
	if res == nil {
		// Not a resource of this template; fall back to a deployed-stack
		// parameter lookup.
		v, ok, err := e.prov.StackParameter(ctx, sc.StackName, ref)
		if err != nil || !ok {
			return nil, err
		}
		return v, nil
	}

	details, err := e.snapshot(ctx, sc, tmpl, res)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, nil // dependency not deployed yet
	}

	actual := e.actions.Attribute(res.Type, attr)
	if v := extractAttribute(details, actual); v != nil {
		return v, nil
	}
	if actual == physicalIDAttr && res.PhysicalID != "" {
		return res.PhysicalID, nil
	}
	logging.Warn("unable to extract attribute from resource state",
		"resource", ref, "attribute", attr)
	return nil, nil
}

func (e *Engine) resolveGetAtt(ctx context.Context, sc *StackContext, tmpl *template.Template, arg any) (any, error) {
	var target, attr string
	switch spec := arg.(type) {
	case []any:
		if len(spec) != 2 {
			return nil, fmt.Errorf("Fn::GetAtt expects [logicalId, attribute], got %v", spec)
		}
		target, _ = spec[0].(string)
		attr, _ = spec[1].(string)
	case string:
		parts := strings.SplitN(spec, ".", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("Fn::GetAtt expects %q to be logicalId.attribute", spec)
		}
		target, attr = parts[0], parts[1]
	default:
		return nil, fmt.Errorf("invalid Fn::GetAtt argument: %v", arg)
	}
	if target == "" || attr == "" {
		return nil, fmt.Errorf("invalid Fn::GetAtt argument: %v", arg)
	}
	return e.resolveRef(ctx, sc, tmpl, target, attr)
}

// resolveJoin resolves each part and joins; a nil part is a hard error, a
// partial join is never produced silently.
func (e *Engine) resolveJoin(ctx context.Context, sc *StackContext, tmpl *template.Template, arg any) (any, error) {
	spec, ok := arg.([]any)
	if !ok || len(spec) != 2 {
		return nil, fmt.Errorf("Fn::Join expects [separator, [values]], got %v", arg)
	}
	sep, _ := spec[0].(string)
	parts, ok := spec[1].([]any)
	if !ok {
		return nil, fmt.Errorf("Fn::Join values must be a list, got %T", spec[1])
	}

	joined := make([]string, 0, len(parts))
	for _, part := range parts {
		resolved, err := e.Resolve(ctx, sc, tmpl, part)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			return nil, &UnresolvedReferenceError{Expr: fmt.Sprintf("Fn::Join %v", spec)}
		}
		joined = append(joined, stringOf(resolved))
	}
	return strings.Join(joined, sep), nil
}

// resolveSub performs ${name} substitution. Without an explicit map the
// pseudo-parameters are implicitly substitutable.
func (e *Engine) resolveSub(ctx context.Context, sc *StackContext, tmpl *template.Template, arg any) (any, error) {
	var text string
	var subs map[string]any

	switch spec := arg.(type) {
	case string:
		text = spec
		subs = map[string]any{
			pseudoRegion:    map[string]any{"Ref": pseudoRegion},
			pseudoPartition: map[string]any{"Ref": pseudoPartition},
			pseudoStackName: map[string]any{"Ref": pseudoStackName},
		}
	case []any:
		if len(spec) != 2 {
			return nil, fmt.Errorf("Fn::Sub expects [template, {substitutions}], got %v", spec)
		}
		text, _ = spec[0].(string)
		m, ok := spec[1].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("Fn::Sub substitutions must be a mapping, got %T", spec[1])
		}
		subs = m
	default:
		return nil, fmt.Errorf("invalid Fn::Sub argument: %v", arg)
	}

	for name, raw := range subs {
		marker := "${" + name + "}"
		if !strings.Contains(text, marker) {
			continue
		}
		resolved, err := e.Resolve(ctx, sc, tmpl, raw)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			return nil, &UnresolvedReferenceError{Expr: fmt.Sprintf("Fn::Sub ${%s}", name)}
		}
		text = strings.ReplaceAll(text, marker, stringOf(resolved))
	}
	return text, nil
}

// snapshot returns the cached provider state for a resource, fetching and
// caching it on a miss. A nil snapshot means "not deployed".
func (e *Engine) snapshot(ctx context.Context, sc *StackContext, tmpl *template.Template, res *template.Resource) (map[string]any, error) {
	e.mu.RLock()
	details := res.Details
	e.mu.RUnlock()
	if details != nil {
		return details, nil
	}

	details, err := e.fetchState(ctx, sc, tmpl, res)
	if err != nil {
		if provider.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	e.mu.Lock()
	res.Details = details
	if res.PhysicalID == "" {
		if pid, ok := details[physicalIDAttr].(string); ok {
			res.PhysicalID = pid
		}
	}
	e.mu.Unlock()
	return details, nil
}

// fetchState asks the provider for a resource's current state, handing it
// the resolved display name and a resolve callback for deeper lookups.
func (e *Engine) fetchState(ctx context.Context, sc *StackContext, tmpl *template.Template, res *template.Resource) (map[string]any, error) {
	rawName := e.actions.DisplayName(res)
	name, err := e.Resolve(ctx, sc, tmpl, rawName)
	if err != nil {
		return nil, err
	}

	req := &provider.FetchRequest{
		Type:       res.Type,
		LogicalID:  res.LogicalID,
		PhysicalID: res.PhysicalID,
		StackName:  sc.StackName,
		Name:       stringOf(name),
		Properties: res.Properties,
		Resolve: func(v any) (any, error) {
			return e.Resolve(ctx, sc, tmpl, v)
		},
	}
	return e.prov.FetchState(ctx, req)
}

// extractAttribute pulls a named attribute from a state snapshot, trying the
// lower-first-character variant some APIs use.
func extractAttribute(details map[string]any, attr string) any {
	if v, ok := details[attr]; ok && v != nil {
		return v
	}
	if attr != "" {
		lower := strings.ToLower(attr[:1]) + attr[1:]
		if v, ok := details[lower]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
