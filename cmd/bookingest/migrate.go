package main

import (
	"log/slog"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-ingest-books/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the books table if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		count, err := st.Count(ctx)
		if err != nil {
			return err
		}
		slog.Info("store ready",
			slog.String("driver", cfg.Store.Driver),
			slog.Int("books", count),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
