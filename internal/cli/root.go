package cli

import (
	"github.com/spf13/cobra"

	"github.com/stacklet-io/stacklet/internal/logging"
)

var (
	flagLogLevel  string
	flagLogJSON   bool
	flagProvider  string
	flagRegion    string
	flagEndpoint  string
	flagAccountID string
)

var rootCmd = &cobra.Command{
	Use:   "stacklet",
	Short: "Declarative stack deployment",
	Long: `Stacklet deploys declarative stack templates against cloud APIs.

It reads JSON or YAML templates, resolves cross-resource references, and
drives the resource graph to a deployed state iteratively:
  • Ref / GetAtt / Join / Sub intrinsics
  • dependency-ordered, parallel resource creation
  • idempotent re-runs against existing infrastructure`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Options{Level: flagLogLevel, JSON: flagLogJSON})
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "aws", "Provider backend (aws, local)")
	rootCmd.PersistentFlags().StringVar(&flagRegion, "region", "us-east-1", "Target region")
	rootCmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "Endpoint override for API-compatible targets")
	rootCmd.PersistentFlags().StringVar(&flagAccountID, "account-id", "000000000000", "Target account ID")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
