package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jaterm_gateway/internal/auth"
	"jaterm_gateway/internal/models"
)

// newTokenCommand mints identity tokens for local testing against a gateway
// that shares JWT_SECRET with this shell.
func newTokenCommand() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed identity token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is required")
			}
			parsed, ok := models.ParseRole(role)
			if !ok {
				return fmt.Errorf("invalid role %q", role)
			}

			token, expires, err := auth.IssueIdentityToken([]byte(secret), userID, parsed, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "User id")
	issue.Flags().StringVar(&role, "role", string(models.RoleOperator), "Role")
	issue.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	_ = issue.MarkFlagRequired("user")

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Identity token tools",
	}
	cmd.AddCommand(issue)
	return cmd
}
