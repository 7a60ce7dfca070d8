// Package main is the MediSimple command: an HTTP API and terminal chat for
// plain-language medical answers grounded in Wikipedia.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/medisimple/pkg/config"
	"github.com/entrhq/medisimple/pkg/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

type rootFlags struct {
	configFile string
	logLevel   string
	logDir     string
	logConsole bool
	model      string
	baseURL    string
	dbPath     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "medisimple",
		Short:         "Plain-language medical answers grounded in Wikipedia",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "Path to configuration file (YAML)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logDir, "log-dir", "", "Directory for log files")
	pf.BoolVar(&flags.logConsole, "log-console", false, "Also write human-readable logs to stderr")
	pf.StringVar(&flags.model, "model", "", "LLM model name")
	pf.StringVar(&flags.baseURL, "base-url", "", "OpenAI-compatible API base URL")
	pf.StringVar(&flags.dbPath, "db", "", "Path to the conversation database")

	root.AddCommand(
		newServeCmd(flags),
		newChatCmd(flags),
		newHistoryCmd(flags),
	)
	return root
}

// loadConfig resolves the configuration from defaults, file, environment and
// flags, then configures logging. Overrides run after the flags and before
// validation.
func loadConfig(cmd *cobra.Command, flags *rootFlags, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logDir != "" {
		cfg.Logging.Dir = flags.logDir
	}
	if cmd.Flags().Changed("log-console") {
		cfg.Logging.Console = flags.logConsole
	}
	if flags.model != "" {
		cfg.LLM.Model = flags.model
	}
	if flags.baseURL != "" {
		cfg.LLM.BaseURL = flags.baseURL
	}
	if flags.dbPath != "" {
		cfg.Storage.Path = flags.dbPath
	}
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	if _, err := logging.Setup(logging.Options{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
		Console: cfg.Logging.Console,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: logging to stderr:", err)
	}
	return cfg, nil
}
