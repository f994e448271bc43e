package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgervet/ledgervet/internal/cli"
	"github.com/ledgervet/ledgervet/internal/export"
)

func exportOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-ofx",
		Short: "Export statements as OFX",
		Long: `Export processed statements as an OFX response document. Bank accounts
are emitted as bank statement messages, card accounts as credit card
statement messages.

Examples:
  ledgervet export-ofx -o statements.ofx
  ledgervet export-ofx -o acme.ofx --account acme_current_12345678`,
		RunE: runExportOFX,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (required)")
	cmd.Flags().StringP("account", "a", "", "Limit to one account id")
	cmd.Flags().String("currency", "GBP", "ISO currency code")
	_ = cmd.MarkFlagRequired("output")

	_ = viper.BindPFlag("export.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("export.account", cmd.Flags().Lookup("account"))
	_ = viper.BindPFlag("export.currency", cmd.Flags().Lookup("currency"))

	return cmd
}

func runExportOFX(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	output := viper.GetString("export.output")
	account := viper.GetString("export.account")
	currency := viper.GetString("export.currency")

	db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	statements, err := listStatementsWithLines(cmd, db, account)
	if err != nil {
		return err
	}
	if len(statements) == 0 {
		return fmt.Errorf("no statements to export")
	}

	if err := export.WriteOFX(statements, currency, output); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Exported %d statements to %s", len(statements), output)))
	return nil
}
