package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stacklet-io/stacklet/internal/engine"
	"github.com/stacklet-io/stacklet/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate <template>",
	Short: "Validate a stack template",
	Long:  `Parse a template and check its resource types and dependency graph.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	tmpl, err := loadTemplate(args[0], nil)
	if err != nil {
		return err
	}

	actions := registry.Default()
	var unknown []string
	for id, res := range tmpl.Resources {
		if _, ok := actions.Lookup(res.Type); !ok {
			unknown = append(unknown, fmt.Sprintf("%s (%s)", id, res.Type))
		}
	}
	sort.Strings(unknown)
	for _, u := range unknown {
		fmt.Printf("warning: unsupported resource type: %s\n", u)
	}

	if _, err := engine.DeletionOrder(tmpl); err != nil {
		fmt.Printf("warning: %v\n", err)
	}

	fmt.Printf("Template OK: %d resource(s), %d parameter(s)\n",
		len(tmpl.Resources), len(tmpl.Parameters))
	return nil
}
