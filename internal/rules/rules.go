// Package rules implements the keyword classifier consulted by the
// notification parser: text → spending category and text → payment channel.
package rules

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Other is the sentinel returned when no rule matches.
const Other = "기타"

// CategoryRule maps a category to the keywords that select it.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// BankAlias maps a keyword found in notification text to the canonical
// payment-channel name shown in the ledger.
type BankAlias struct {
	Keyword string `yaml:"keyword"`
	Name    string `yaml:"name"`
}

// Ruleset is one immutable version of the classification config. Both lists
// are ordered: the first matching entry wins.
type Ruleset struct {
	Categories []CategoryRule `yaml:"categories"`
	Banks      []BankAlias    `yaml:"banks"`
}

// Engine serves classification queries against the active Ruleset. The
// active set is swapped wholesale, never patched, so concurrent callers
// always observe one consistent version.
type Engine struct {
	active atomic.Pointer[Ruleset]
}

// NewEngine returns an engine serving the bundled default ruleset.
func NewEngine() *Engine {
	e := &Engine{}
	e.active.Store(Defaults())
	return e
}

// Replace atomically swaps the active ruleset. A nil or empty set falls
// back to the bundled defaults.
func (e *Engine) Replace(rs *Ruleset) {
	if rs == nil || (len(rs.Categories) == 0 && len(rs.Banks) == 0) {
		rs = Defaults()
	}
	e.active.Store(rs)
}

// Current returns the active ruleset. Callers must not mutate it.
func (e *Engine) Current() *Ruleset {
	return e.active.Load()
}

// ClassifyCategory scans category rules in list order and returns the first
// category whose keyword appears in text (case-insensitive substring).
func (e *Engine) ClassifyCategory(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range e.active.Load().Categories {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Category
			}
		}
	}
	return Other
}

// ClassifyChannel resolves the payment channel the same way: first alias
// whose keyword appears in text wins.
func (e *Engine) ClassifyChannel(text string) string {
	lower := strings.ToLower(text)
	for _, alias := range e.active.Load().Banks {
		if alias.Keyword != "" && strings.Contains(lower, strings.ToLower(alias.Keyword)) {
			return alias.Name
		}
	}
	return Other
}

// LoadFile parses a YAML rules file into a Ruleset.
func LoadFile(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	return &rs, nil
}
