package cli

import (
	"github.com/spf13/cobra"

	"surfscale-engine/internal/app/server"
)

func newAccountsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List stored accounts or import them from Meta",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored accounts, credentials masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.Build(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			accounts, err := app.Service.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), accounts)
		},
	}

	var token string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Store the Meta ad accounts visible to a token",
		Example: `  surfscale accounts import --token EAAB...
  surfscale accounts import   # reuse the stored token`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.Build(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			imported, err := app.Service.ImportMetaAccounts(cmd.Context(), token)
			if err != nil {
				return err
			}
			for i := range imported {
				imported[i] = imported[i].Redacted()
			}
			return printJSON(cmd.OutOrStdout(), imported)
		},
	}
	imp.Flags().StringVar(&token, "token", "", "Meta access token (stored on success)")

	cmd.AddCommand(list, imp)
	return cmd
}
