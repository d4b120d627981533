package cli

import (
	"github.com/spf13/cobra"

	"surfscale-engine/internal/app/server"
	"surfscale-engine/internal/engine"
)

func newRulesCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show or replace the stored rule set",
	}

	show := &cobra.Command{
		Use:   "list",
		Short: "Print the rule set in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.Build(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return printJSON(cmd.OutOrStdout(), app.Service.Rules())
		},
	}

	var file string
	apply := &cobra.Command{
		Use:     "apply",
		Short:   "Replace the stored rule set with a YAML rules file",
		Example: `  surfscale rules apply --file configs/rules.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := engine.LoadRulesFile(file)
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.SaveRules(cmd.Context(), rules); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), app.Service.Rules())
		},
	}
	apply.Flags().StringVarP(&file, "file", "f", "", "YAML rules file")
	_ = apply.MarkFlagRequired("file")

	cmd.AddCommand(show, apply)
	return cmd
}
