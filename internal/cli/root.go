// Package cli is the surfscale command line: the HTTP service plus one-shot
// fetch, offline rule evaluation, store administration and credential checks.
package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"surfscale-engine/internal/config"
)

type options struct {
	configPath string
	cfg        config.Config
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "surfscale",
		Short: "Rule-driven budget scaling for Meta and Triple Whale campaigns",
		Long: `surfscale polls Meta Ads and Triple Whale, reconciles overlapping campaigns,
and adjusts budgets of surf-scaling campaigns according to threshold rules.

Commands:
  serve            - Run the HTTP API, rule listener and surf scheduler
  fetch            - Fetch and reconcile the campaigns of one account
  evaluate         - Dry-run rules against a campaigns JSON file
  rules            - Show or replace the stored rule set
  accounts         - List stored accounts or import them from Meta
  test-connection  - Check Triple Whale credentials`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(o.configPath)
			if err != nil {
				return err
			}
			config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)
			o.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "Config file (default configs/application.yaml)")

	root.AddCommand(
		newServeCmd(o),
		newFetchCmd(o),
		newEvaluateCmd(o),
		newRulesCmd(o),
		newAccountsCmd(o),
		newTestConnectionCmd(o),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
