package main

import (
	"github.com/FranksOps/internsift/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /jobs, /healthz and /metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			h := server.NewHandler(server.Config{
				Orchestrator: a.Orchestrator,
				Policies:     a.Policies,
				Policy:       a.RoleSpec.Name,
				Logger:       c.logger,
			})
			return server.New(addr, h, c.logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}
