package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/stacklet-io/stacklet/internal/engine"
	"github.com/stacklet-io/stacklet/internal/provider"
	"github.com/stacklet-io/stacklet/internal/registry"
	"github.com/stacklet-io/stacklet/internal/template"
	"github.com/stacklet-io/stacklet/providers/aws"
	"github.com/stacklet-io/stacklet/providers/local"
)

// loadTemplate reads and parses a template file and overlays any parameter
// values given on the command line.
func loadTemplate(path string, params map[string]string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	tmpl, err := template.Parse(data, template.ParserConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	for k, v := range params {
		tmpl.Parameters[k] = v
	}
	return tmpl, nil
}

// providerRegistry returns the registry with both built-in backends wired.
func providerRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	reg.RegisterFactory("aws", func(ctx context.Context, cfg provider.Config) (provider.Interface, error) {
		return aws.New(ctx, cfg)
	})
	reg.RegisterFactory("local", func(_ context.Context, cfg provider.Config) (provider.Interface, error) {
		return local.New(cfg), nil
	})
	return reg
}

// buildEngine constructs the engine over the selected provider backend.
func buildEngine(ctx context.Context, maxIterations, parallelism int) (*engine.Engine, error) {
	cfg := provider.Config{
		Region:    flagRegion,
		Endpoint:  flagEndpoint,
		AccountID: flagAccountID,
	}
	prov, err := providerRegistry().Load(ctx, flagProvider, cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(registry.Default(), prov, engine.Options{
		MaxIterations: maxIterations,
		Parallelism:   parallelism,
		Region:        cfg.Region,
		AccountID:     cfg.AccountID,
	}), nil
}

// renderReport prints a per-resource outcome table.
func renderReport(rep *engine.Report) {
	fmt.Printf("\nStack %s (%d iteration(s)):\n", rep.StackName, rep.Iterations)
	for _, id := range sortedResultIDs(rep) {
		res := rep.Resources[id]
		line := fmt.Sprintf("  %-10s %s (%s)", res.Status, id, res.Type)
		if res.PhysicalID != "" {
			line += " -> " + res.PhysicalID
		}
		fmt.Println(line)
		if res.Err != nil {
			fmt.Printf("             %v\n", res.Err)
		}
	}
	for _, pending := range rep.Pending {
		if len(pending.Unsatisfied) > 0 {
			fmt.Printf("  %s is waiting on: %v\n", pending.LogicalID, pending.Unsatisfied)
		}
	}
}

func sortedResultIDs(rep *engine.Report) []string {
	ids := make([]string, 0, len(rep.Resources))
	for id := range rep.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
