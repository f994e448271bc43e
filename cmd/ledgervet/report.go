package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgervet/ledgervet/internal/cli"
	"github.com/ledgervet/ledgervet/internal/export"
	"github.com/ledgervet/ledgervet/internal/model"
	"github.com/ledgervet/ledgervet/internal/storage"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [statements|transactions|gaps]",
		Short: "Report on processed statements",
		Long: `Report on processed statements from the database.

Reports:
  statements    One row per statement: balances, status, GAP flag
  transactions  One row per statement line
  gaps          Recorded continuity gaps per account

Examples:
  ledgervet report statements                       # Table on stdout
  ledgervet report gaps --format csv -o gaps.csv    # CSV file
  ledgervet report statements --format xlsx -o report.xlsx`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"statements", "transactions", "gaps"},
		RunE:      runReport,
	}

	cmd.Flags().StringP("format", "f", "table", "Output format (table, csv, xlsx)")
	cmd.Flags().StringP("output", "o", "", "Output file (required for csv and xlsx)")
	cmd.Flags().StringP("account", "a", "", "Limit to one account id")

	_ = viper.BindPFlag("report.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("report.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("report.account", cmd.Flags().Lookup("account"))

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format := viper.GetString("report.format")
	output := viper.GetString("report.output")
	account := viper.GetString("report.account")

	db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	report, err := buildReport(cmd, args[0], db, account)
	if err != nil {
		return err
	}

	switch format {
	case "table":
		fmt.Println(renderTable(report))
		return nil
	case "csv":
		if output == "" {
			return fmt.Errorf("--output is required for csv format")
		}
		if err := export.WriteCSV(report, output); err != nil {
			return err
		}
	case "xlsx":
		if output == "" {
			return fmt.Errorf("--output is required for xlsx format")
		}
		if err := export.WriteXLSX([]*export.Report{report}, output); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (use table, csv or xlsx)", format)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Wrote %d rows to %s", len(report.Rows), output)))
	return nil
}

func buildReport(cmd *cobra.Command, kind string, db *storage.SQLiteStorage, account string) (*export.Report, error) {
	ctx := cmd.Context()
	switch kind {
	case "statements":
		statements, err := db.ListStatements(ctx, account)
		if err != nil {
			return nil, err
		}
		gaps, err := db.ListGaps(ctx)
		if err != nil {
			return nil, err
		}
		return export.StatementReport(statements, gaps), nil
	case "transactions":
		statements, err := listStatementsWithLines(cmd, db, account)
		if err != nil {
			return nil, err
		}
		return export.TransactionReport(statements), nil
	case "gaps":
		gaps, err := db.ListGaps(ctx)
		if err != nil {
			return nil, err
		}
		return export.GapReport(gaps), nil
	default:
		return nil, fmt.Errorf("unknown report %q", kind)
	}
}

func listStatementsWithLines(cmd *cobra.Command, db *storage.SQLiteStorage, account string) ([]model.StatementRecord, error) {
	ctx := cmd.Context()
	statements, err := db.ListStatements(ctx, account)
	if err != nil {
		return nil, err
	}
	for i := range statements {
		full, err := db.GetStatement(ctx, statements[i].ID)
		if err != nil {
			return nil, err
		}
		statements[i].Lines = full.Lines
	}
	return statements, nil
}

func renderTable(report *export.Report) string {
	widths := make([]int, len(report.Headers))
	rows := make([][]string, 0, len(report.Rows))
	for i, h := range report.Headers {
		widths[i] = len(h)
	}
	for _, row := range report.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
			if f, ok := v.(float64); ok {
				cells[i] = fmt.Sprintf("%.2f", f)
			}
			if i < len(widths) && len(cells[i]) > widths[i] {
				widths[i] = len(cells[i])
			}
		}
		rows = append(rows, cells)
	}

	var b strings.Builder
	var header []string
	for i, h := range report.Headers {
		header = append(header, fmt.Sprintf("%-*s", widths[i], h))
	}
	b.WriteString(cli.TableHeaderStyle.Render(strings.Join(header, "  ")))
	for _, cells := range rows {
		b.WriteString("\n")
		var line []string
		for i, c := range cells {
			line = append(line, fmt.Sprintf("%-*s", widths[i], c))
		}
		b.WriteString(cli.TableCellStyle.Render(strings.Join(line, "  ")))
	}
	if len(rows) == 0 {
		b.WriteString("\n" + cli.SubtleStyle.Render("(no rows)"))
	}
	return b.String()
}
