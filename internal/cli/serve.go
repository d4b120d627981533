package cli

import (
	"github.com/spf13/cobra"

	"surfscale-engine/internal/app/server"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, rule listener and surf scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return server.Run(o.cfg)
		},
	}
}
