package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	destroyStackName   string
	destroyAutoApprove bool
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <template>",
	Short: "Delete a stack's resources",
	Long:  `Delete every resource of a deployed stack in reverse dependency order.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDestroy,
}

func init() {
	destroyCmd.Flags().StringVar(&destroyStackName, "stack-name", "", "Stack name (required)")
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive confirmation")
	_ = destroyCmd.MarkFlagRequired("stack-name")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tmpl, err := loadTemplate(args[0], nil)
	if err != nil {
		return err
	}

	if !destroyAutoApprove {
		fmt.Printf("This will delete %d resource(s) of stack %s. Continue? (y/n): ",
			len(tmpl.Resources), destroyStackName)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	eng, err := buildEngine(ctx, 0, 0)
	if err != nil {
		return err
	}

	rep, err := eng.Destroy(ctx, tmpl, destroyStackName)
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}
	renderReport(rep)

	if !rep.Complete {
		return fmt.Errorf("stack %s not fully destroyed: %d resource(s) failed",
			destroyStackName, len(rep.Failed()))
	}
	fmt.Println("\nDestroy complete.")
	return nil
}
