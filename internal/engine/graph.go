package engine

import (
	"fmt"
	"strings"

	"github.com/stacklet-io/stacklet/internal/template"
)

// DependenciesOf returns the resources the given resource depends on: the
// union of its explicit DependsOn list and every template resource named as
// the target of a Ref or Fn::GetAtt anywhere in its property tree.
// Self-references are excluded. No transitive closure is computed; the
// scheduler closes over dependencies by iterating.
func DependenciesOf(res *template.Resource, tmpl *template.Template) map[string]*template.Resource {
	out := make(map[string]*template.Resource)

	for _, dep := range res.DependsOn {
		if other := tmpl.Resource(dep); other != nil && dep != res.LogicalID {
			out[dep] = other
		}
	}

	targets := make(map[string]bool)
	collectRefTargets(res.Properties, targets)
	for target := range targets {
		if target == res.LogicalID {
			continue
		}
		if other := tmpl.Resource(target); other != nil {
			out[target] = other
		}
	}
	return out
}

// collectRefTargets walks a property tree structurally and gathers every
// Ref / Fn::GetAtt target name.
func collectRefTargets(v any, out map[string]bool) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			for key, arg := range val {
				switch strings.ToLower(key) {
				case "ref":
					if name, ok := arg.(string); ok {
						out[name] = true
					}
					return
				case "fn::getatt":
					switch spec := arg.(type) {
					case []any:
						if len(spec) > 0 {
							if name, ok := spec[0].(string); ok {
								out[name] = true
							}
						}
					case string:
						if i := strings.Index(spec, "."); i > 0 {
							out[spec[:i]] = true
						}
					}
					return
				}
			}
		}
		for _, elem := range val {
			collectRefTargets(elem, out)
		}
	case []any:
		for _, elem := range val {
			collectRefTargets(elem, out)
		}
	}
}

// DeletionOrder returns logical IDs in reverse dependency order, so that
// dependents are deleted before the resources they reference. Returns an
// error when the graph has a cycle; callers fall back to arbitrary order.
func DeletionOrder(tmpl *template.Template) ([]string, error) {
	order, err := topoOrder(tmpl)
	if err != nil {
		return nil, err
	}
	rev := make([]string, len(order))
	for i, id := range order {
		rev[len(order)-1-i] = id
	}
	return rev, nil
}

// topoOrder is Kahn's algorithm over the derived dependency graph.
func topoOrder(tmpl *template.Template) ([]string, error) {
	deps := make(map[string]map[string]*template.Resource, len(tmpl.Resources))
	dependents := make(map[string][]string)
	inDegree := make(map[string]int, len(tmpl.Resources))

	for id, res := range tmpl.Resources {
		deps[id] = DependenciesOf(res, tmpl)
		inDegree[id] = len(deps[id])
	}
	for id, dd := range deps {
		for dep := range dd {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	var sorted []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(tmpl.Resources) {
		return nil, fmt.Errorf("dependency cycle detected in resource graph")
	}
	return sorted, nil
}
