package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklet-io/stacklet/internal/engine"
)

var (
	deployStackName     string
	deployParams        map[string]string
	deployMaxIterations int
	deployParallelism   int
)

var deployCmd = &cobra.Command{
	Use:   "deploy <template>",
	Short: "Deploy a stack template",
	Long:  `Parse a template and drive its resources to a deployed state.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployStackName, "stack-name", "", "Stack name (required)")
	deployCmd.Flags().StringToStringVarP(&deployParams, "param", "P", nil, "Template parameter overrides (format: key=value)")
	deployCmd.Flags().IntVar(&deployMaxIterations, "max-iterations", engine.DefaultMaxIterations, "Convergence iteration budget")
	deployCmd.Flags().IntVar(&deployParallelism, "parallelism", 0, "Concurrent resource operations (0 = default)")
	_ = deployCmd.MarkFlagRequired("stack-name")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tmpl, err := loadTemplate(args[0], deployParams)
	if err != nil {
		return err
	}

	eng, err := buildEngine(ctx, deployMaxIterations, deployParallelism)
	if err != nil {
		return err
	}

	fmt.Printf("Deploying stack %s (%d resource(s))...\n", deployStackName, len(tmpl.Resources))
	rep, err := eng.Deploy(ctx, tmpl, deployStackName)
	if err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	renderReport(rep)

	if !rep.Complete {
		return fmt.Errorf("stack %s did not fully converge: %d failed, %d pending",
			deployStackName, len(rep.Failed()), len(rep.Pending))
	}
	fmt.Println("\nDeploy complete.")
	return nil
}
