package categorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Generator is the remote inference boundary: one prompt in, free text out.
// Implementations report quota exhaustion by returning an error that wraps
// ErrQuotaExhausted.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

const replyHeader = "Original_Name|Category|Group_Name"

// RemoteClassifier turns a batch of names into one prompt and parses the
// pipe-delimited reply.
type RemoteClassifier struct {
	gen        Generator
	categories []CategoryInfo
}

// NewRemoteClassifier returns a classifier offering the given categories.
func NewRemoteClassifier(gen Generator, categories []CategoryInfo) *RemoteClassifier {
	return &RemoteClassifier{gen: gen, categories: categories}
}

// ClassifyBatch asks the remote service about names. The error is either
// ErrQuotaExhausted, which is returned as soon as the service signals it, or a
// *TransientError. Names missing from the reply are absent from the result.
func (c *RemoteClassifier) ClassifyBatch(ctx context.Context, names []string, exemplars Exemplars) (map[EntityKey]Classification, error) {
	if len(names) == 0 {
		return map[EntityKey]Classification{}, nil
	}
	reply, err := c.gen.Generate(ctx, c.BuildPrompt(names, exemplars))
	if err != nil {
		if errors.Is(err, ErrQuotaExhausted) {
			return nil, err
		}
		return nil, &TransientError{Err: err}
	}
	return c.ParseReply(reply, names), nil
}

// BuildPrompt renders the exemplar block, the instruction block and the
// newline-delimited name list.
func (c *RemoteClassifier) BuildPrompt(names []string, exemplars Exemplars) string {
	var b strings.Builder
	b.WriteString("You are a B2B industry analyst. Using the known examples below, decide the Category and the parent Group of each new company.\n\n")
	b.WriteString("Known examples:\n")
	for _, info := range c.categories {
		for _, name := range exemplars[info.Name] {
			fmt.Fprintf(&b, "- %s: %s\n", name, info.Name)
		}
	}
	b.WriteString("\nCategories:\n")
	for _, info := range c.categories {
		if info.Description == "" {
			fmt.Fprintf(&b, "- %s\n", info.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
	}
	b.WriteString("\nReply in plain text, one line per company, fields separated by |:\n")
	b.WriteString(replyHeader)
	b.WriteString("\n\nCompanies:\n")
	b.WriteString(strings.Join(names, "\n"))
	b.WriteString("\n")
	return b.String()
}

// ParseReply extracts name|category|group lines. Malformed lines, header
// echoes and names outside the batch are skipped. A category of "Other" or an
// empty category counts as no answer.
func (c *RemoteClassifier) ParseReply(reply string, names []string) map[EntityKey]Classification {
	batch := make(map[EntityKey]string, len(names))
	for _, name := range names {
		batch[KeyOf(name)] = name
	}
	out := make(map[EntityKey]Classification)
	for _, line := range strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n") {
		if !strings.Contains(line, "|") || strings.Contains(line, "Original_Name") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		key := KeyOf(parts[0])
		name, ok := batch[key]
		if !ok {
			// markdown list or emphasis around the name
			key = KeyOf(strings.Trim(parts[0], " \t*`-"))
			if name, ok = batch[key]; !ok {
				continue
			}
		}
		cat := c.canonicalCategory(strings.TrimSpace(parts[1]))
		if cat == "" || strings.EqualFold(string(cat), string(CategoryOther)) {
			continue
		}
		group := strings.TrimSpace(strings.Trim(parts[2], "*`"))
		if group == "" {
			group = name
		}
		out[key] = Classification{Category: cat, Group: group}
	}
	return out
}

// canonicalCategory restores the configured spelling of a known category.
// Other values are kept as the operator may have added them.
func (c *RemoteClassifier) canonicalCategory(raw string) Category {
	for _, info := range c.categories {
		if strings.EqualFold(raw, string(info.Name)) {
			return info.Name
		}
	}
	for _, known := range KnownCategories {
		if strings.EqualFold(raw, string(known)) {
			return known
		}
	}
	return Category(raw)
}
