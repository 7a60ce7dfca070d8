package main

import (
	"fmt"
	"strings"

	"github.com/entrhq/medisimple/pkg/history"
	"github.com/entrhq/medisimple/pkg/logging"
	"github.com/spf13/cobra"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear stored conversations",
	}
	cmd.AddCommand(newHistoryShowCmd(flags), newHistoryClearCmd(flags))
	return cmd
}

func openStore(cmd *cobra.Command, flags *rootFlags) (*history.SQLiteStore, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}
	return history.NewSQLiteStore(cfg.Storage.Path)
}

func newHistoryShowCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Print the most recent turns of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logging.Close()
			store, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			turns, err := store.RecentWindow(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(turns) == 0 {
				fmt.Fprintf(out, "No messages for session %q\n", args[0])
				return nil
			}
			for _, t := range turns {
				fmt.Fprintf(out, "[%s] %s: %s\n",
					t.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					strings.ToUpper(string(t.Role)),
					t.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Number of turns to show")
	return cmd
}

func newHistoryClearCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session>",
		Short: "Delete every turn of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logging.Close()
			store, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %q\n", args[0])
			return nil
		},
	}
}
