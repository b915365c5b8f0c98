package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParserConfig controls template parsing. The zero value is the default
// configuration: timestamps stay strings (CloudFormation policy documents
// contain date-shaped strings like "2012-10-17" that must not become dates).
type ParserConfig struct {
	// ParseTimestamps decodes YAML timestamp scalars into their canonical
	// string form instead of passing the raw text through.
	ParseTimestamps bool
}

// Parse reads a JSON or YAML stack template.
func Parse(data []byte, cfg ParserConfig) (*Template, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		var node yaml.Node
		if yerr := yaml.Unmarshal(data, &node); yerr != nil {
			return nil, fmt.Errorf("template is neither valid JSON nor YAML: %w", yerr)
		}
		decoded, derr := decodeNode(&node, cfg)
		if derr != nil {
			return nil, derr
		}
		m, ok := decoded.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("template root must be a mapping, got %T", decoded)
		}
		doc = m
	}
	return fromDocument(doc)
}

func fromDocument(doc map[string]any) (*Template, error) {
	rawResources, ok := doc["Resources"].(map[string]any)
	if !ok || len(rawResources) == 0 {
		return nil, fmt.Errorf("template contains no Resources section")
	}

	tmpl := &Template{
		Resources:  make(map[string]*Resource, len(rawResources)),
		Parameters: make(map[string]string),
	}

	for logicalID, raw := range rawResources {
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("resource %q is not a mapping", logicalID)
		}
		res := &Resource{
			LogicalID: logicalID,
			Type:      normalizeType(body),
		}
		if props, ok := body["Properties"].(map[string]any); ok {
			res.Properties = props
		} else {
			res.Properties = map[string]any{}
		}
		res.DependsOn = dependsOnList(body["DependsOn"])
		tmpl.Resources[logicalID] = res
	}

	// Parameter defaults become the initial stack parameter values; callers
	// overlay user-supplied values on top.
	if params, ok := doc["Parameters"].(map[string]any); ok {
		for name, raw := range params {
			if decl, ok := raw.(map[string]any); ok {
				if def, ok := decl["Default"]; ok && def != nil {
					tmpl.Parameters[name] = fmt.Sprintf("%v", def)
				}
			}
		}
	}

	return tmpl, nil
}

// normalizeType strips the vendor prefix from a resource type, so both
// "AWS::SQS::Queue" and "SQS::Queue" map to the registry key "SQS::Queue".
func normalizeType(body map[string]any) string {
	t, _ := body["Type"].(string)
	if t == "" {
		t, _ = body["ResourceType"].(string)
	}
	parts := strings.SplitN(t, "::", 2)
	if len(parts) == 2 && parts[0] == "AWS" {
		return parts[1]
	}
	return t
}

func dependsOnList(v any) []string {
	switch dep := v.(type) {
	case string:
		return []string{dep}
	case []any:
		out := make([]string, 0, len(dep))
		for _, d := range dep {
			if s, ok := d.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// decodeNode converts a YAML node tree into plain maps/slices/scalars,
// expanding CloudFormation short-form tags (!Ref, !GetAtt, !Sub, ...) into
// their long-form intrinsic equivalents.
func decodeNode(n *yaml.Node, cfg ParserConfig) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decodeNode(n.Content[0], cfg)
	case yaml.AliasNode:
		return decodeNode(n.Alias, cfg)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			val, err := decodeNode(n.Content[i+1], cfg)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		if fn, ok := shortFormName(n.Tag); ok {
			return map[string]any{fn: m}, nil
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := decodeNode(c, cfg)
			if err != nil {
				return nil, err
			}
			s = append(s, val)
		}
		if fn, ok := shortFormName(n.Tag); ok {
			return map[string]any{fn: s}, nil
		}
		return s, nil
	case yaml.ScalarNode:
		return decodeScalar(n, cfg)
	}
	return nil, fmt.Errorf("unsupported YAML node kind %v at line %d", n.Kind, n.Line)
}

func decodeScalar(n *yaml.Node, cfg ParserConfig) (any, error) {
	if fn, ok := shortFormName(n.Tag); ok {
		// !GetAtt takes a dotted path in short form.
		if fn == "Fn::GetAtt" {
			parts := strings.SplitN(n.Value, ".", 2)
			if len(parts) == 2 {
				return map[string]any{fn: []any{parts[0], parts[1]}}, nil
			}
		}
		return map[string]any{fn: n.Value}, nil
	}

	if n.Tag == "!!timestamp" && !cfg.ParseTimestamps {
		return n.Value, nil
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid scalar at line %d: %w", n.Line, err)
	}
	return v, nil
}

// shortFormName maps a CloudFormation short-form YAML tag to the long-form
// intrinsic name: !Ref -> Ref, anything else -> Fn::<name>.
func shortFormName(tag string) (string, bool) {
	if !strings.HasPrefix(tag, "!") || strings.HasPrefix(tag, "!!") {
		return "", false
	}
	name := strings.TrimPrefix(tag, "!")
	if name == "Ref" || name == "Condition" {
		return name, true
	}
	return "Fn::" + name, true
}
