package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"blackroad.io/operator/internal/config"
	"blackroad.io/operator/pkg/token"
)

var tokenSecret string

// tokenOutput is the JSON form of token generate.
type tokenOutput struct {
	Token  string `json:"token"`
	Digest string `json:"digest,omitempty"`
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage admin tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an admin token and its digest",
	Long: `Generate a random admin token. With --secret the HMAC digest is printed
too; configure the server with OPERATOR_ADMIN_TOKEN_DIGEST so the plaintext
token never has to be stored on it.

The token is shown once. Store it securely.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSecret != "" && len(tokenSecret) < config.MinSecretLength {
			return fmt.Errorf("secret must be at least %d bytes (got %d)", config.MinSecretLength, len(tokenSecret))
		}

		tok, err := token.Issue()
		if err != nil {
			return err
		}
		out := tokenOutput{Token: tok}
		if tokenSecret != "" {
			out.Digest = token.Digest(tok, tokenSecret)
		}

		return emit(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "Token:  %s\n", out.Token)
			if out.Digest != "" {
				fmt.Fprintf(w, "Digest: %s\n", out.Digest)
			}
			warnColor.Fprintln(w, "\nThe token is shown once. Store it securely.")
		})
	},
}

func init() {
	tokenGenerateCmd.Flags().StringVar(&tokenSecret, "secret", getEnv("OPERATOR_HMAC_SECRET", ""),
		"HMAC secret to compute the digest with")

	tokenCmd.AddCommand(tokenGenerateCmd)
	rootCmd.AddCommand(tokenCmd)
}
