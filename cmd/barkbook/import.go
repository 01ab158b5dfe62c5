package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/barkbook/internal/core"
	"github.com/JonMunkholm/barkbook/internal/database"
)

type importOptions struct {
	org         string
	file        string
	apply       bool
	timeout     time.Duration
	databaseURL string
	maxFileSize int64
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import clients and pets from a .csv or .xlsx file",
		Long: `Import clients and pets for one organization.

Without --apply the file is checked against the database and the summary shows
what would be created; nothing is written.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			opts.org = strings.TrimSpace(opts.org)
			if err := core.ValidateOrganizationID(opts.org); err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --org: %w", err))
			}
			if _, err := core.SourceForFile(opts.file); err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --file: %w", err))
			}
			if opts.databaseURL == "" {
				opts.databaseURL = firstEnv("DATABASE_URL", "DB_URL")
			}
			if opts.databaseURL == "" {
				return withCode(exitUsage, fmt.Errorf("--database-url or DATABASE_URL is required"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			pool, err := database.Connect(ctx, database.PoolConfig{
				URL:            opts.databaseURL,
				MaxConns:       2,
				ConnectTimeout: 15 * time.Second,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			store := database.NewStore(pool)
			svc := core.NewService(store, store, store, core.ServiceConfig{
				MaxFileSize:   opts.maxFileSize,
				MaxConcurrent: 1,
				ImportTimeout: opts.timeout,
			})
			return runImport(ctx, svc, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.org, "org", "", "Organization ID to import into (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to a .csv or .xlsx file (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write to the database (default is a dry run)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Maximum duration of the import")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "Postgres URL (default: $DATABASE_URL)")
	cmd.Flags().Int64Var(&opts.maxFileSize, "max-file-size", 50<<20, "Largest accepted file in bytes")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// runImport imports opts.file through svc and writes the run as JSON to out.
// Row failures do not abort the import; they produce exitRowErrors.
func runImport(ctx context.Context, svc *core.Service, opts importOptions, out io.Writer) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer f.Close()

	run, importErr := svc.ImportFile(ctx, core.FileImport{
		OrganizationID: opts.org,
		FileName:       filepath.Base(opts.file),
		Reader:         f,
		DryRun:         !opts.apply,
	})
	if run != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return err
		}
	}
	if importErr != nil {
		return fmt.Errorf("%s (%w)", core.FormatUserError(importErr), importErr)
	}
	if n := len(run.Result.Errors); n > 0 {
		return withCode(exitRowErrors, fmt.Errorf("%d rows failed", n))
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
