package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgervet/ledgervet/internal/cli"
	"github.com/ledgervet/ledgervet/internal/config"
	"github.com/ledgervet/ledgervet/internal/engine"
	"github.com/ledgervet/ledgervet/internal/extract"
	"github.com/ledgervet/ledgervet/internal/model"
	"github.com/ledgervet/ledgervet/internal/storage"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [files or directories...]",
		Short: "Process statement documents",
		Long: `Process bank statement documents: identify each document against the
configured rules, resolve its fields, reconcile balances and continuity, and
persist the standardized records.

Directories are expanded to the .pdf and .json files they contain.

Examples:
  ledgervet process statements/             # Process a directory
  ledgervet process jan.pdf feb.pdf         # Process individual files
  ledgervet process --turbo statements/     # Parallel field resolution
  ledgervet process --smart-rename inbox/   # Rename verified files`,
		Args: cobra.MinimumNArgs(1),
		RunE: runProcess,
	}

	// Flags
	cmd.Flags().BoolP("turbo", "t", false, "Resolve documents on parallel workers")
	cmd.Flags().IntP("workers", "w", 0, "Worker count for turbo mode (0 = one per CPU)")
	cmd.Flags().Bool("smart-rename", false, "Rename verified files to {account_id}_{date}")
	cmd.Flags().String("rules", "", "Rules file (default: $HOME/.config/ledgervet/rules.yaml)")

	_ = viper.BindPFlag("process.turbo", cmd.Flags().Lookup("turbo"))
	_ = viper.BindPFlag("process.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("process.smart_rename", cmd.Flags().Lookup("smart-rename"))
	_ = viper.BindPFlag("rules.path", cmd.Flags().Lookup("rules"))

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	handler := cli.NewInterruptHandler(os.Stdout)
	ctx := handler.HandleInterrupts(cmd.Context())

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .pdf or .json files found in %s", strings.Join(args, ", "))
	}

	cfg, err := config.Load(rulesPath())
	if err != nil {
		return err
	}

	db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Processing statements..."),
	)

	coordinator, err := engine.NewCoordinator(cfg, extract.NewService(slog.Default()), db, db, engine.Options{
		Turbo:       viper.GetBool("process.turbo"),
		Workers:     viper.GetInt("process.workers"),
		SmartRename: viper.GetBool("process.smart_rename"),
		OnDocument:  func() { _ = bar.Add(1) },
	})
	if err != nil {
		return err
	}

	slog.Info("Starting batch", "documents", len(files))
	summary, err := coordinator.ProcessBatch(ctx, files)
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Println(renderSummary(summary))
	if handler.WasInterrupted() {
		return fmt.Errorf("processing interrupted")
	}
	return nil
}

// collectFiles expands directory arguments into their processable files,
// keeping explicit file arguments as given. The result preserves argument
// order; directory contents are sorted for a stable batch order.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", arg, err)
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".pdf", ".json":
				found = append(found, filepath.Join(arg, entry.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func renderSummary(summary *model.BatchSummary) string {
	counts := summary.StatusCounts()

	var b strings.Builder
	fmt.Fprintf(&b, "Documents:  %d\n", summary.Processed)
	fmt.Fprintf(&b, "Verified:   %s\n", cli.SuccessStyle.Render(fmt.Sprintf("%d", counts[model.StatusOK])))
	fmt.Fprintf(&b, "Partial:    %s\n", cli.WarningStyle.Render(fmt.Sprintf("%d", counts[model.StatusPartial])))
	fmt.Fprintf(&b, "Failed:     %s\n", cli.ErrorStyle.Render(fmt.Sprintf("%d", counts[model.StatusFailed])))
	fmt.Fprintf(&b, "Duration:   %s", summary.Duration.Round(time.Millisecond))

	for _, res := range summary.Results {
		if res.Status == model.StatusOK {
			continue
		}
		detail := res.Err
		if detail == "" {
			detail = describePartial(&res)
		}
		fmt.Fprintf(&b, "\n%s %s: %s",
			cli.ErrorIcon, filepath.Base(res.File), detail)
	}

	return cli.RenderBox("Batch "+summary.BatchID[:8], b.String())
}

func describePartial(res *model.DocumentResult) string {
	var reasons []string
	if unresolved := res.UnresolvedFields(); len(unresolved) > 0 {
		reasons = append(reasons, "unresolved: "+strings.Join(unresolved, ", "))
	}
	if res.Outcome != nil {
		if !res.Outcome.ArithmeticOK {
			reasons = append(reasons, fmt.Sprintf("balance discrepancy %.2f", res.Outcome.Discrepancy))
		}
		for _, gap := range res.Outcome.Gaps {
			reasons = append(reasons, strings.ToLower(string(gap.Kind)))
		}
	}
	if len(reasons) == 0 {
		return "incomplete"
	}
	return strings.Join(reasons, "; ")
}

func rulesPath() string {
	path := viper.GetString("rules.path")
	if path == "" {
		path = "$HOME/.config/ledgervet/rules.yaml"
	}
	return config.ExpandPath(path)
}

func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/ledgervet/ledgervet.db"
	}
	dbPath = config.ExpandPath(dbPath)

	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
