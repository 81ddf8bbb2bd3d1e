// Package main contains the dataflow cli. It uses the cobra package for the
// command implementation.
package main

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dataflow/internal/core"
	"dataflow/internal/dburl"
	"dataflow/internal/execute"
	"dataflow/internal/inspect"
	"dataflow/internal/logging"
	"dataflow/internal/migrate"
	"dataflow/internal/model"
	"dataflow/internal/output"
)

var (
	flagURL     string
	flagSchema  string
	flagFormat  string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dataflow",
		Short:         "Schema auto-migration tool – declare models, converge the database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", os.Getenv("DATABASE_URL"),
		"database URL (defaults to $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagSchema, "schema", "schema.toml",
		"path to the TOML schema declaration")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "summary",
		"output format: summary, sql, or json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.AddCommand(migrateCmd(), inspectCmd(), diffCmd(), statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	var (
		dryRun      bool
		destructive bool
		yes         bool
		strict      bool
		version     string
		lockTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Generate and apply the migration that converges the database with the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := model.LoadFile(flagSchema)
			if err != nil {
				return err
			}
			formatter, err := output.NewFormatter(flagFormat)
			if err != nil {
				return err
			}

			runner := migrate.NewRunner(logging.New(flagVerbose))
			report, err := runner.AutoMigrate(cmd.Context(), migrate.Options{
				DatabaseURL:      flagURL,
				Models:           models,
				AllowDestructive: destructive,
				StrictTypes:      strict,
				DryRun:           dryRun,
				AutoConfirm:      yes,
				Confirm:          promptConfirm(cmd, formatter),
				Version:          version,
				LockTimeout:      lockTimeout,
			})
			if errors.Is(err, core.ErrConfirmationDeclined) {
				cmd.Println("Migration declined; nothing was applied.")
				return nil
			}
			if err != nil {
				return err
			}

			if dryRun {
				return printMigration(cmd, formatter, report.Migration)
			}
			if report.Result == nil || report.Result.Executed == 0 {
				cmd.Println("Schema is up to date.")
				return nil
			}
			cmd.Printf("Applied migration %s (%d statements).\n",
				report.Result.Version, report.Result.Executed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the migration without applying it")
	cmd.Flags().BoolVar(&destructive, "destructive", false,
		"allow DROP TABLE / DROP COLUMN for objects the schema no longer declares")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking for confirmation")
	cmd.Flags().BoolVar(&strict, "strict", false,
		"fail on incompatible column types instead of generating an ALTER")
	cmd.Flags().StringVar(&version, "version", "", "override the migration version label")
	cmd.Flags().DurationVar(&lockTimeout, "lock-timeout", 0,
		"how long to wait for the migration lock (default 30s)")
	return cmd
}

// promptConfirm shows the migration plan and asks on the terminal. Declining
// aborts without touching the database.
func promptConfirm(cmd *cobra.Command, formatter output.Formatter) migrate.ConfirmFunc {
	return func(m *core.Migration, pf *execute.Preflight) (bool, error) {
		if err := printMigration(cmd, formatter, m); err != nil {
			return false, err
		}
		for _, w := range pf.Warnings {
			cmd.Printf("[%s] %s\n", w.Level, w.Message)
		}
		cmd.Print("Apply this migration? [y/N] ")

		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the current structure of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := dburl.Parse(flagURL)
			if err != nil {
				return err
			}
			schema, err := inspect.GetCurrentSchema(cmd.Context(), target)
			if err != nil {
				return err
			}
			formatter, err := output.NewFormatter(flagFormat)
			if err != nil {
				return err
			}
			text, err := formatter.FormatSchema(schema)
			if err != nil {
				return err
			}
			cmd.Print(text)
			return nil
		},
	}
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show what separates the declared schema from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := model.LoadFile(flagSchema)
			if err != nil {
				return err
			}
			formatter, err := output.NewFormatter(flagFormat)
			if err != nil {
				return err
			}

			runner := migrate.NewRunner(logging.New(flagVerbose))
			report, err := runner.AutoMigrate(cmd.Context(), migrate.Options{
				DatabaseURL: flagURL,
				Models:      models,
				DryRun:      true,
			})
			if err != nil {
				return err
			}
			text, err := formatter.FormatDiff(report.Diff)
			if err != nil {
				return err
			}
			cmd.Print(text)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the migrations recorded in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := dburl.Parse(flagURL)
			if err != nil {
				return err
			}
			db, err := sql.Open(target.Driver, target.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := execute.NewExecutor(db, target.Dialect).History(cmd.Context())
			if err != nil {
				return err
			}
			formatter, err := output.NewFormatter(flagFormat)
			if err != nil {
				return err
			}
			text, err := formatter.FormatHistory(entries)
			if err != nil {
				return err
			}
			cmd.Print(text)
			return nil
		},
	}
}

func printMigration(cmd *cobra.Command, formatter output.Formatter, m *core.Migration) error {
	text, err := formatter.FormatMigration(m)
	if err != nil {
		return err
	}
	cmd.Print(text)
	return nil
}
