// Package config loads and validates the declarative extraction rules:
// identification rules and statement templates.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/ledgervet/ledgervet/internal/common"
	"github.com/ledgervet/ledgervet/internal/model"
)

// Config is the process-wide rule set. It is loaded once at startup and
// shared read-only by every worker; nothing may mutate it afterwards.
type Config struct {
	Rules     []model.IdentificationRule
	Templates map[string]model.StatementTemplate
}

// rawTemplate mirrors the on-disk template shape before conversion.
type rawTemplate struct {
	Fields []model.FieldSpec `mapstructure:"fields"`
	Lines  *model.LineSpec   `mapstructure:"lines"`
}

type rawConfig struct {
	Rules     []model.IdentificationRule `mapstructure:"rules"`
	Templates map[string]rawTemplate     `mapstructure:"templates"`
}

// Load reads the rule file at path and validates it. Any schema violation is
// fatal: a malformed rule is never silently skipped, since every document in
// a batch depends on the same rule set.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(ExpandPath(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", common.ErrInvalidConfig, path, err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", common.ErrInvalidConfig, path, err)
	}

	cfg := &Config{
		Rules:     raw.Rules,
		Templates: make(map[string]model.StatementTemplate, len(raw.Templates)),
	}
	for id, t := range raw.Templates {
		fields := make(map[string]model.FieldSpec, len(t.Fields))
		for _, spec := range t.Fields {
			if spec.Name == "" {
				return nil, fmt.Errorf("%w: template %q: field with empty name", common.ErrInvalidConfig, id)
			}
			if _, dup := fields[spec.Name]; dup {
				return nil, fmt.Errorf("%w: template %q: duplicate field %q", common.ErrInvalidConfig, id, spec.Name)
			}
			fields[spec.Name] = spec
		}
		cfg.Templates[id] = model.StatementTemplate{ID: id, Fields: fields, Lines: t.Lines}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("%w: no identification rules defined", common.ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("%w: rule %d: empty id", common.ErrInvalidConfig, i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("%w: duplicate rule id %q", common.ErrInvalidConfig, rule.ID)
		}
		seen[rule.ID] = true
		if len(rule.Markers) == 0 {
			return fmt.Errorf("%w: rule %q: no markers", common.ErrInvalidConfig, rule.ID)
		}
		switch rule.MatchPolicy {
		case model.MatchAll, model.MatchAny:
		default:
			return fmt.Errorf("%w: rule %q: unknown match policy %q", common.ErrInvalidConfig, rule.ID, rule.MatchPolicy)
		}
		if _, ok := c.Templates[rule.TemplateID]; !ok {
			return fmt.Errorf("%w: rule %q: unknown template %q", common.ErrInvalidConfig, rule.ID, rule.TemplateID)
		}
	}

	for id, tmpl := range c.Templates {
		if err := tmpl.Validate(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
		}
		for name, spec := range tmpl.Fields {
			switch spec.RefType {
			case model.RefCellValue, model.RefTableSearch, model.RefRowSearch:
			default:
				return fmt.Errorf("%w: template %q field %q: unknown ref type %q", common.ErrInvalidConfig, id, name, spec.RefType)
			}
			if len(spec.Candidates) == 0 {
				return fmt.Errorf("%w: template %q field %q: no candidates", common.ErrInvalidConfig, id, name)
			}
			for ci, cand := range spec.Candidates {
				if cand.Pattern == "" {
					return fmt.Errorf("%w: template %q field %q candidate %d: empty pattern", common.ErrInvalidConfig, id, name, ci)
				}
				if _, err := regexp.Compile(cand.Pattern); err != nil {
					return fmt.Errorf("%w: template %q field %q candidate %d: %w", common.ErrInvalidConfig, id, name, ci, err)
				}
			}
		}
		if lines := tmpl.Lines; lines != nil {
			if lines.Date.Pattern == "" {
				return fmt.Errorf("%w: template %q lines: date pattern is required", common.ErrInvalidConfig, id)
			}
			cols := []model.LineColumn{lines.Date, lines.Description, lines.PaymentIn, lines.PaymentOut, lines.Balance}
			for _, col := range cols {
				if col.Pattern == "" {
					continue
				}
				if _, err := regexp.Compile(col.Pattern); err != nil {
					return fmt.Errorf("%w: template %q lines: %w", common.ErrInvalidConfig, id, err)
				}
			}
		}
	}
	return nil
}

// Template returns the template with the given id.
func (c *Config) Template(id string) (model.StatementTemplate, bool) {
	t, ok := c.Templates[id]
	return t, ok
}

// WriteDefault copies the shipped starter configuration into dir as the
// starting point for a user override. Existing files are left untouched
// unless overwrite is set.
func WriteDefault(dir string, overwrite bool) (string, error) {
	dir = ExpandPath(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, "rules.yaml")
	if _, err := os.Stat(path); err == nil && !overwrite {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(defaultRules), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return os.ExpandEnv(path)
}
