package main

import (
	"fmt"

	"github.com/entrhq/medisimple/pkg/chatui"
	"github.com/entrhq/medisimple/pkg/config"
	"github.com/entrhq/medisimple/pkg/logging"
	"github.com/spf13/cobra"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	var (
		session   string
		ephemeral bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, terminalOwned)
			if err != nil {
				return err
			}
			defer logging.Close()

			a, err := newApp(cfg, ephemeral)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					log := logging.New("chat")
					log.Error().Err(err).Msg("shutdown error")
				}
			}()

			if path := logging.LogPath(); path != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Logging to", path)
			}
			return chatui.Run(cmd.Context(), a.chat, chatui.Options{
				SessionID: session,
				Model:     a.provider.GetModel(),
			})
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "terminal", "Conversation session id")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep history in memory only")
	return cmd
}

// terminalOwned keeps log output and browser windows off the chat view.
func terminalOwned(cfg *config.Config) {
	cfg.Logging.Console = false
	cfg.Browser.Headless = true
}
