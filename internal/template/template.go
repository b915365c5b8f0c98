package template

// Resource is a single node in a stack template's resource graph.
type Resource struct {
	LogicalID  string
	Type       string // e.g. "S3::Bucket"
	Properties map[string]any
	DependsOn  []string

	// PhysicalID is the provider-assigned identifier. It is empty until the
	// resource has been created and is written at most once per run.
	PhysicalID string

	// Details caches the provider-reported state snapshot for this resource.
	// A nil value means "not deployed as far as we know".
	Details map[string]any
}

// Template is a parsed stack template: resources keyed by logical ID plus
// stack-level input parameters.
type Template struct {
	Resources  map[string]*Resource
	Parameters map[string]string
}

// Resource returns the resource with the given logical ID, or nil.
func (t *Template) Resource(logicalID string) *Resource {
	if t == nil {
		return nil
	}
	return t.Resources[logicalID]
}

// LogicalIDs returns all resource logical IDs in no particular order.
func (t *Template) LogicalIDs() []string {
	ids := make([]string, 0, len(t.Resources))
	for id := range t.Resources {
		ids = append(ids, id)
	}
	return ids
}
