package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ledgervet/ledgervet/internal/cli"
	"github.com/ledgervet/ledgervet/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rule configuration",
	}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter rules file",
		Long: `Write a starter rules file with one worked identification rule and
statement template to edit from.`,
		RunE: runConfigInit,
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing rules file")
	return cmd
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path, err := config.WriteDefault(filepath.Dir(rulesPath()), force)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess("Wrote starter rules to " + path))
	fmt.Println(cli.SubtleStyle.Render("Edit the rule markers and field candidates to match your statements."))
	return nil
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the rules file",
		Long: `Load and validate the rules file: marker and template references,
candidate patterns, match policies and required reconciliation fields.`,
		RunE: runConfigValidate,
	}
	cmd.Flags().String("rules", "", "Rules file (default: $HOME/.config/ledgervet/rules.yaml)")
	return cmd
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	path := rulesPath()
	if flag, _ := cmd.Flags().GetString("rules"); flag != "" {
		path = config.ExpandPath(flag)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s is valid: %d rules, %d templates",
		path, len(cfg.Rules), len(cfg.Templates))))
	return nil
}
