package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jaterm_gateway/internal/secrets"
)

type secretOptions struct {
	masterSecret string
	kdf          string
}

func newSecretCommand() *cobra.Command {
	opts := &secretOptions{}

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate master secrets and encrypt or decrypt provider credentials",
	}
	cmd.PersistentFlags().StringVar(&opts.masterSecret, "master-secret", "", "Master secret (default: $JATERM_MASTER_SECRET)")
	cmd.PersistentFlags().StringVar(&opts.kdf, "kdf", "", "Key derivation: sha256 or hkdf (default: $JATERM_KDF or sha256)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "gen",
			Short: "Print a fresh random master secret",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				secret, err := secrets.GenerateMasterSecret()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "encrypt",
			Short: "Encrypt a credential read from the terminal or stdin",
			Long: `Encrypt a provider credential with the master secret. On a terminal the
value is read without echo; otherwise stdin is read to EOF.

  echo -n "$TOKEN" | jatermctl secret encrypt`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				codec, err := opts.codec()
				if err != nil {
					return err
				}
				plaintext, err := readSecret(cmd)
				if err != nil {
					return err
				}
				if plaintext == "" {
					return errors.New("refusing to encrypt an empty value")
				}
				encrypted, err := codec.Encrypt(plaintext)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), encrypted)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decrypt <value>",
			Short: "Decrypt a stored credential, failing on tampered or foreign values",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				codec, err := opts.codec()
				if err != nil {
					return err
				}
				plaintext, err := codec.DecryptStrict(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plaintext)
				return nil
			},
		},
	)
	return cmd
}

func (o *secretOptions) codec() (*secrets.Codec, error) {
	master := o.masterSecret
	if master == "" {
		master = os.Getenv("JATERM_MASTER_SECRET")
	}
	if master == "" {
		return nil, errors.New("master secret is required: pass --master-secret or set JATERM_MASTER_SECRET")
	}
	kdf := o.kdf
	if kdf == "" {
		kdf = envOr("JATERM_KDF", string(secrets.KDFSHA256))
	}
	return secrets.NewCodecWithKDF(master, secrets.KDF(strings.ToLower(kdf)))
}

// readSecret reads without echo from a terminal, or the whole of stdin otherwise
func readSecret(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Credential: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read credential: %w", err)
		}
		return string(raw), nil
	}

	raw, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}
