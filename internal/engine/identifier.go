package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgervet/ledgervet/internal/common"
	"github.com/ledgervet/ledgervet/internal/model"
)

// Identifier selects the applicable account/statement template for a
// document by evaluating identification rules in configured order.
type Identifier struct {
	rules []model.IdentificationRule
}

// NewIdentifier creates an identifier over a shared read-only rule set.
func NewIdentifier(rules []model.IdentificationRule) *Identifier {
	return &Identifier{rules: rules}
}

// Identify returns the first rule whose markers match the grid. Rule order
// encodes precedence: overlapping rules are not an error, the first match
// simply wins. A document matching no rule fails identification.
func (id *Identifier) Identify(grid *model.TableGrid) (*model.IdentificationRule, error) {
	for i := range id.rules {
		rule := &id.rules[i]
		if ruleMatches(rule, grid) {
			slog.Debug("identification rule matched",
				"rule", rule.ID,
				"template", rule.TemplateID,
				"company", rule.Company)
			return rule, nil
		}
	}
	return nil, fmt.Errorf("%w: evaluated %d rules", common.ErrNoTemplateMatched, len(id.rules))
}

func ruleMatches(rule *model.IdentificationRule, grid *model.TableGrid) bool {
	text := grid.PageText(rule.TargetPage)
	if rule.NormalizeWhitespace {
		text = stripWhitespace(text)
	}

	found := 0
	for _, marker := range rule.Markers {
		if rule.NormalizeWhitespace {
			marker = stripWhitespace(marker)
		}
		if strings.Contains(text, marker) {
			found++
			if rule.MatchPolicy == model.MatchAny {
				return true
			}
		} else if rule.MatchPolicy == model.MatchAll {
			return false
		}
	}
	return rule.MatchPolicy == model.MatchAll && found == len(rule.Markers)
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
