package main

import (
	"github.com/entrhq/medisimple/pkg/logging"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		addr     string
		headless bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}
			defer logging.Close()

			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.store.Close()

			log := logging.New("serve")
			log.Info().
				Str("addr", cfg.Server.Addr).
				Str("model", cfg.LLM.Model).
				Str("base_url", a.provider.GetBaseURL()).
				Str("db", cfg.Storage.Path).
				Msg("starting medisimple")

			// Serve closes the browser on the way out
			return a.server().Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run the browser without a window")
	return cmd
}
