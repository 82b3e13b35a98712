package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/providers"
)

func newProviderCommand() *cobra.Command {
	var (
		typ        string
		baseURL    string
		credential string
		model      string
		timeout    time.Duration
	)

	test := &cobra.Command{
		Use:   "test",
		Short: "Check that an Ollama or vLLM endpoint is reachable and list its models",
		Long: `Build a throwaway adapter from the flags and run a connection test. Nothing
is stored.

  jatermctl provider test --type ollama --url http://localhost:11434`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := models.ProviderConfig{
				Name:         "cli",
				Type:         models.ProviderType(strings.ToLower(typ)),
				BaseURL:      strings.TrimRight(baseURL, "/"),
				DefaultModel: model,
				TimeoutMs:    int(timeout.Milliseconds()),
			}
			if !cfg.Type.IsValid() {
				return fmt.Errorf("unsupported provider type %q", typ)
			}

			manager := providers.NewManager(nil, nil, nil)
			defer manager.Close()

			result := manager.TestConnectionWithConfig(cmd.Context(), cfg, credential)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("connection test failed: %s", result.Error)
			}
			return nil
		},
	}
	test.Flags().StringVar(&typ, "type", "", "Provider type: ollama or vllm")
	test.Flags().StringVar(&baseURL, "url", "", "Provider base URL")
	test.Flags().StringVar(&credential, "credential", "", "Plaintext API key, if the endpoint needs one")
	test.Flags().StringVar(&model, "model", "", "Default model")
	test.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	_ = test.MarkFlagRequired("type")
	_ = test.MarkFlagRequired("url")

	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Provider connectivity tools",
	}
	cmd.AddCommand(test)
	return cmd
}
