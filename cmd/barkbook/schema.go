package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/barkbook/internal/database"
	"github.com/JonMunkholm/barkbook/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	var (
		printOnly   bool
		databaseURL string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the owners, pets and import_runs tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				_, err := io.WriteString(cmd.OutOrStdout(), schema.SQL())
				return err
			}
			if databaseURL == "" {
				databaseURL = firstEnv("DATABASE_URL", "DB_URL")
			}
			if databaseURL == "" {
				return withCode(exitUsage, fmt.Errorf("--database-url or DATABASE_URL is required"))
			}

			pool, err := database.Connect(cmd.Context(), database.PoolConfig{
				URL:            databaseURL,
				MaxConns:       1,
				ConnectTimeout: 15 * time.Second,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := schema.Apply(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "schema applied to %s\n", database.DatabaseName(databaseURL))
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the DDL instead of applying it")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (default: $DATABASE_URL)")
	return cmd
}
