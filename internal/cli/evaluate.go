package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/engine"
)

func newEvaluateCmd(o *options) *cobra.Command {
	var (
		campaignsFile string
		rulesFile     string
		snapshot      string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Dry-run rules against a campaigns JSON file",
		Long: `Runs one surf cycle offline. Campaigns are read from a JSON array in the
canonical campaign shape; rules come from --rules, surf.rules_file or the
built-in defaults. Nothing is persisted.

Snapshots:
  daily     - evaluate against the reported daily metrics (default)
  variance  - simulate hourly movement around the daily metrics`,
		Example: `  surfscale evaluate --campaigns campaigns.json --rules configs/rules.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(campaignsFile)
			if err != nil {
				return fmt.Errorf("failed to read campaigns: %w", err)
			}
			var cs []campaign.Campaign
			if err := json.Unmarshal(data, &cs); err != nil {
				return fmt.Errorf("failed to decode campaigns: %w", err)
			}

			if rulesFile == "" {
				rulesFile = o.cfg.Surf.RulesFile
			}
			rules := engine.DefaultRules()
			if rulesFile != "" {
				if rules, err = engine.LoadRulesFile(rulesFile); err != nil {
					return err
				}
			}

			var snap engine.MetricSnapshotProvider
			switch snapshot {
			case "daily":
				snap = engine.DailySnapshot{}
			case "variance":
				snap = engine.NewVarianceSnapshot()
			default:
				return fmt.Errorf("unknown snapshot %q", snapshot)
			}

			out := engine.New(snap).RunCycle(cs, rules)
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&campaignsFile, "campaigns", "", "Campaigns JSON file")
	cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "Rules YAML file")
	cmd.Flags().StringVar(&snapshot, "snapshot", "daily", "daily | variance")
	_ = cmd.MarkFlagRequired("campaigns")
	return cmd
}
