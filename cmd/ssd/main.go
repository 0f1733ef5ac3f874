package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aa-dank/slug-sweep-deduper/internal/app"
	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/console"
	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and overlays environment overrides.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	config.ApplyEnv(cfg, os.LookupEnv)
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// command identifies the CLI command being run (e.g. "sweep", "ledger sync").
func newApp(command string, debug bool) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg, command, app.Options{Debug: debug})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "ssd",
	Short:        "Interactive duplicate file sweeps for the records file server",
	SilenceUsage: true,
}

// sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep LOCATION",
	Short: "Review duplicated files in a file server directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")

		a, err := newApp("sweep", debug)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := a.Sweep(ctx, args[0])
		if report != nil {
			printReport(report)
		}
		return err
	},
}

func printReport(r *sweep.Report) {
	fmt.Printf("\nReviewed %d file(s): %d kept, %d with deletions, %d skipped\n",
		r.Reviewed, r.Kept, r.DeletedSome+r.DeletedAll, r.Skipped)
	fmt.Printf("Deletion requests: %d accepted (%s), %d failed\n",
		r.DeletionsAccepted, console.FormatSize(r.BytesAccepted), r.DeletionsFailed)
	if r.CheckpointFailures > 0 {
		fmt.Printf("Periodic syncs failed %d time(s); see `ssd errors`\n", r.CheckpointFailures)
	}
}

// ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Manage the sweep ledger",
}

var ledgerInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty ledger in remote storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp("ledger init", false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		exists, err := a.LedgerExists(ctx)
		if err != nil {
			return err
		}
		if exists {
			if !force {
				return fmt.Errorf("a ledger already exists; use --force to replace it")
			}
			c := console.New(os.Stdin, os.Stdout, 0)
			ok, err := c.Confirm(ctx, "This replaces the existing ledger and every decision recorded in it.")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := a.InitLedger(ctx); err != nil {
			return fmt.Errorf("initializing ledger: %w", err)
		}
		fmt.Println("Ledger initialized.")
		return nil
	},
}

var ledgerSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the local staging copy to remote storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ledger sync", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SyncLedger(cmd.Context()); err != nil {
			return fmt.Errorf("syncing ledger: %w", err)
		}
		fmt.Println("Ledger synced.")
		return nil
	},
}

var ledgerKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the key pair that encrypts the remote ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ledger keygen", false)
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := app.PromptPassphrase("New ledger passphrase: ")
		if err != nil {
			return err
		}
		again, err := app.PromptPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != again {
			return fmt.Errorf("passphrases do not match")
		}
		if pass == "" {
			return fmt.Errorf("passphrase must not be empty")
		}

		if err := a.Keygen(pass); err != nil {
			return err
		}
		fmt.Println("Ledger key pair generated.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View processed locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history", false)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No locations processed yet.")
			return nil
		}

		for _, r := range rows {
			status := "incomplete"
			if r.Location.Completed {
				status = "complete"
			}
			outcome := string(r.Location.Outcome)
			if outcome == "" {
				outcome = "running"
			}
			fmt.Printf("#%d  %s  %-10s  %-9s  decided:%d/%d  deleted:%d (%s)  %s\n",
				r.Location.ID,
				r.Location.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				status,
				outcome,
				r.FilesDecided,
				r.Location.DuplicateGroups,
				r.FilesDeleted,
				console.FormatSize(r.BytesDeleted),
				r.Location.LocationPath,
			)
		}
		return nil
	},
}

// errors command
var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "View recent errors recorded in the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("errors", false)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.Errors(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No errors recorded.")
			return nil
		}

		for _, e := range rows {
			fmt.Printf("#%d  %s  %-10s  %s", e.ID, e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Operation, e.Message)
			if e.Context != "" {
				fmt.Printf("  [%s]", e.Context)
			}
			fmt.Println()
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Fill in the catalog, archives_app and file_server sections before sweeping.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Catalog:      %s %s\n", cfg.Catalog.Type, catalogTarget(cfg.Catalog))
		fmt.Printf("Ledger:       %s %s\n", cfg.Ledger.Type, ledgerTarget(cfg.Ledger))
		fmt.Printf("Staging Dir:  %s\n", cfg.Ledger.StagingDir)
		fmt.Printf("Encryption:   %s\n", cfg.Ledger.Encryption.Type)
		fmt.Printf("Archives App: %s (user %s)\n", cfg.Archives.URL, cfg.Archives.User)
		fmt.Printf("Mount:        %s\n", cfg.FileServer.Mount)
		fmt.Printf("Filters:      %v\n", cfg.Filters.Enabled)

		if err := config.Validate(cfg); err != nil {
			fmt.Printf("\n%v\n", err)
		}
		return nil
	},
}

func catalogTarget(c config.CatalogConfig) string {
	if c.Type == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.Name)
}

func ledgerTarget(l config.LedgerConfig) string {
	switch l.Type {
	case "filesystem":
		return l.Dir
	case "s3":
		return fmt.Sprintf("s3://%s/%s", l.S3Bucket, l.S3Prefix)
	default:
		return ""
	}
}

func init() {
	// ledger subcommands
	ledgerCmd.AddCommand(ledgerInitCmd)
	ledgerInitCmd.Flags().Bool("force", false, "Replace an existing ledger")
	ledgerCmd.AddCommand(ledgerSyncCmd)
	ledgerCmd.AddCommand(ledgerKeygenCmd)

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().Bool("debug", false, "Also write debug logs to stderr")
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of locations to show")
	rootCmd.AddCommand(errorsCmd)
	errorsCmd.Flags().IntP("limit", "n", 20, "Maximum number of errors to show")
	rootCmd.AddCommand(configCmd)
}
