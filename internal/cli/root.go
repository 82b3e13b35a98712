package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the jatermctl command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "jatermctl",
		Short: "jatermctl - operator tooling for the jaTerm AI gateway",
		Long: `jatermctl manages the pieces of the jaTerm AI gateway that live outside
the HTTP API: master secrets and credential encryption, offline command risk
analysis, provider connectivity checks and database migrations.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newSecretCommand(),
		newRiskCommand(),
		newProviderCommand(),
		newMigrateCommand(),
		newTokenCommand(),
	)
	return root
}

// Execute runs the root command with os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

// envOr returns the value of key, or def when it is unset
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
