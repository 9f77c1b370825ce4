package categorizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type compiledRuleSet struct {
	category Category
	keywords []string
}

type compiledAlias struct {
	keyword string
	group   string
}

// RuleClassifier matches entity names against an ordered keyword table. It is
// immutable after construction and safe for concurrent use.
type RuleClassifier struct {
	rules   []compiledRuleSet
	aliases []compiledAlias
}

// NewRuleClassifier compiles the keyword table and group aliases. Keywords are
// upper-cased but not trimmed: trailing spaces are significant ("GE ").
func NewRuleClassifier(rules []RuleSet, aliases []GroupAlias) *RuleClassifier {
	rc := &RuleClassifier{}
	for _, set := range rules {
		compiled := compiledRuleSet{category: Category(strings.TrimSpace(string(set.Category)))}
		for _, kw := range set.Keywords {
			if strings.TrimSpace(kw) == "" {
				continue
			}
			compiled.keywords = append(compiled.keywords, strings.ToUpper(kw))
		}
		if compiled.category == "" || len(compiled.keywords) == 0 {
			continue
		}
		rc.rules = append(rc.rules, compiled)
	}
	for _, alias := range aliases {
		if strings.TrimSpace(alias.Keyword) == "" || strings.TrimSpace(alias.Group) == "" {
			continue
		}
		rc.aliases = append(rc.aliases, compiledAlias{keyword: strings.ToUpper(alias.Keyword), group: alias.Group})
	}
	return rc
}

// Classify returns the category of the first rule set with a keyword contained
// in name.
func (rc *RuleClassifier) Classify(name string) (Category, bool) {
	upper := strings.ToUpper(name)
	for _, set := range rc.rules {
		for _, kw := range set.keywords {
			if strings.Contains(upper, kw) {
				return set.category, true
			}
		}
	}
	return "", false
}

// Group returns the parent group for a rule-resolved name. The last matching
// alias wins; without a match the name is its own group.
func (rc *RuleClassifier) Group(name string) string {
	upper := strings.ToUpper(name)
	group := name
	for _, alias := range rc.aliases {
		if strings.Contains(upper, alias.keyword) {
			group = alias.group
		}
	}
	return group
}

// Resolve splits names into rule-resolved records and names left for the
// remote tier. Input order is preserved in both outputs.
func (rc *RuleClassifier) Resolve(names []string) ([]Record, []string) {
	var resolved []Record
	var pending []string
	for _, name := range names {
		cat, ok := rc.Classify(name)
		if !ok {
			pending = append(pending, name)
			continue
		}
		resolved = append(resolved, Record{
			Name:        name,
			ParentGroup: rc.Group(name),
			Category:    cat,
			Source:      ProvenanceHardRule,
		})
	}
	return resolved, pending
}

// LoadRuleFile reads an ordered keyword table from a JSON file.
func LoadRuleFile(path string) ([]RuleSet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var raw []struct {
		Category string   `json:"category"`
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rule file: %w", err)
	}
	out := make([]RuleSet, 0, len(raw))
	for _, r := range raw {
		out = append(out, RuleSet{Category: Category(r.Category), Keywords: r.Keywords})
	}
	return out, nil
}
