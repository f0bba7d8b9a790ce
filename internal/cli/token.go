package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cabotin-go/internal/auth"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an admin token for the dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := auth.NewService([]byte(cfg.AdminJWTSecret), cfg.AdminJWTExpiration).IssueToken(tokenSubject)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "who the token is for")
	rootCmd.AddCommand(tokenCmd)
}
