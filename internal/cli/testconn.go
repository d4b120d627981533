package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"surfscale-engine/internal/providers"
	"surfscale-engine/internal/providers/triplewhale"
)

func newTestConnectionCmd(o *options) *cobra.Command {
	var apiKey, storeID string
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check Triple Whale credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := o.cfg.TripleWhaleHTTP()
			doer := providers.NewDoer("triple_whale", &http.Client{Timeout: s.Timeout}, providers.NewPacer(s.Spacing))
			if err := triplewhale.New(s.BaseURL, doer).TestConnection(cmd.Context(), apiKey, storeID); err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Triple Whale connection OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Triple Whale API key")
	cmd.Flags().StringVar(&storeID, "store-id", "", "Shopify store id (optional)")
	_ = cmd.MarkFlagRequired("api-key")
	return cmd
}
