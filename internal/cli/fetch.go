package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"surfscale-engine/internal/app/server"
	"surfscale-engine/internal/campaign"
)

func newFetchCmd(o *options) *cobra.Command {
	var (
		accountID string
		period    string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and reconcile the campaigns of one account",
		Example: `  surfscale fetch --account acc-1 --period last_7d
  surfscale fetch -c prod.yaml --account acc-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := server.Build(ctx, o.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Campaigns(ctx, accountID, campaign.ParsePeriod(period))
			if err != nil {
				return fmt.Errorf("account %s: %w", accountID, err)
			}
			if res.Failed() {
				log.Warn().Str("account", accountID).Msg(res.Error)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&accountID, "account", "a", "", "Account id")
	cmd.Flags().StringVarP(&period, "period", "p", string(campaign.PeriodToday), "today | yesterday | last_7d")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
