package main

import (
	"log/slog"
	"strings"

	"github.com/FranksOps/internsift/internal/app"
	"github.com/FranksOps/internsift/internal/config"
	"github.com/spf13/cobra"
)

type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "internsift",
		Short:         "Fetch job listings and keep the ones matching a target role",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(c),
		newServeCmd(c),
		newReportCmd(c),
		newExtractCmd(c),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = strings.ToLower(c.logLevel)
	}
	c.cfg = cfg
	c.logger = cfg.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(c.logger)
	return nil
}

func (c *cli) app(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), c.cfg, c.logger)
}
