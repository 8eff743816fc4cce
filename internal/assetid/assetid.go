// Package assetid derives the post identifier that groups files belonging to
// the same archived post.
package assetid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rewired-gh/ctascan/internal/models"
)

// Rule selects how a filename maps to a post ID.
type Rule string

const (
	// RuleUnderscore keeps the part of the stem before the first underscore,
	// so "A_1.png" and "A.json" both belong to post "A".
	RuleUnderscore Rule = "underscore"
	// RuleStem uses the whole stem. Caption documents are matched this way
	// because they are keyed by their own filename.
	RuleStem Rule = "stem"
)

// ParseRule validates a configured rule name. "auto" and "" yield the empty
// rule, meaning the kind default applies.
func ParseRule(s string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return "", nil
	case string(RuleUnderscore):
		return RuleUnderscore, nil
	case string(RuleStem):
		return RuleStem, nil
	default:
		return "", fmt.Errorf("unknown identifier rule %q", s)
	}
}

// ForKind returns the rule a kind uses by default: image kinds group by the
// underscore prefix, caption kinds by the full stem.
func ForKind(kind models.AnalysisKind) Rule {
	if kind.Target() == models.TargetImage {
		return RuleUnderscore
	}
	return RuleStem
}

// Stem returns the filename without its directory and final extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Derive returns the post ID of filename under rule.
func Derive(filename string, rule Rule) string {
	return FromStem(Stem(filename), rule)
}

// FromStem applies rule to a stem that has already lost its extension, such
// as the asset stem recovered from a sidecar name.
func FromStem(stem string, rule Rule) string {
	if rule == RuleStem {
		return stem
	}
	if i := strings.IndexByte(stem, '_'); i >= 0 {
		return stem[:i]
	}
	return stem
}
