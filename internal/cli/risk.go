package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jaterm_gateway/internal/risk"
)

func newRiskCommand() *cobra.Command {
	var (
		rulesPath string
		warn      float64
		block     float64
		asJSON    bool
	)

	analyze := &cobra.Command{
		Use:   "analyze <command...>",
		Short: "Score a shell command with the local risk analyzer",
		Long: `Score a shell command offline with the built-in rules, optionally extended
by a YAML rules pack. No provider is contacted.

  jatermctl risk analyze -- rm -rf /tmp/build
  jatermctl risk analyze --rules ./rules.yaml "terraform destroy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []risk.Option{risk.WithThresholds(warn, block)}
			if rulesPath != "" {
				extra, err := risk.LoadRules(rulesPath)
				if err != nil {
					return err
				}
				opts = append(opts, risk.WithRules(extra...))
			}

			analysis := risk.NewAnalyzer(nil, opts...).Analyze(strings.Join(args, " "))

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(analysis)
			}
			fmt.Fprintf(out, "score:          %.2f\n", analysis.Score)
			fmt.Fprintf(out, "recommendation: %s\n", analysis.Recommendation)
			if len(analysis.Categories) > 0 {
				fmt.Fprintf(out, "categories:     %s\n", strings.Join(analysis.Categories, ", "))
			}
			fmt.Fprintf(out, "explanation:    %s\n", analysis.Explanation)
			return nil
		},
	}
	analyze.Flags().StringVar(&rulesPath, "rules", "", "YAML rules pack appended to the built-in rules")
	analyze.Flags().Float64Var(&warn, "warn", 0.6, "Warn threshold")
	analyze.Flags().Float64Var(&block, "block", 0.9, "Block threshold")
	analyze.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON")

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Offline command risk analysis",
	}
	cmd.AddCommand(analyze)
	return cmd
}
