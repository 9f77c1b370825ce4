package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yashubustudio/custmapper/categorizer"
)

// EnsureConfigFile writes the default configuration to path when the file
// does not exist yet, giving operators a starting point for editing rules and
// categories outside of the binary. It reports whether a file was created.
func EnsureConfigFile(path string) (bool, error) {
	clean, ok, err := missingFile(path)
	if err != nil || !ok {
		return false, err
	}
	if err := categorizer.SaveConfig(clean, categorizer.DefaultConfig()); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureRuleFile writes rules as a JSON keyword table readable by
// categorizer.LoadRuleFile when path does not exist yet.
func EnsureRuleFile(path string, rules []categorizer.RuleSet) (bool, error) {
	clean, ok, err := missingFile(path)
	if err != nil || !ok {
		return false, err
	}
	if dir := filepath.Dir(clean); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create rule file dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encode rule file: %w", err)
	}
	if err := os.WriteFile(clean, append(data, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("write rule file: %w", err)
	}
	return true, nil
}

func missingFile(path string) (string, bool, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", false, errors.New("path is required")
	}
	clean = filepath.Clean(clean)
	if _, err := os.Stat(clean); err == nil {
		return clean, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, fmt.Errorf("check %s: %w", clean, err)
	}
	return clean, true, nil
}
