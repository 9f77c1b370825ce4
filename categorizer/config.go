package categorizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no config path is given.
const DefaultConfigFile = "custmapper.yaml"

const (
	defaultLedgerFile     = "Customer_Parent_Mapping.csv"
	defaultCheckpointFile = "custmapper-checkpoint.db"
	defaultModel          = "gemini-1.5-flash"
	defaultBatchSize      = 20
	defaultBatchDelay     = 2 * time.Second
	defaultExemplarCount  = 3
)

// RuleSet is one entry of the ordered keyword table. Earlier entries win.
type RuleSet struct {
	Category Category `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// GroupAlias assigns a parent group to rule-resolved entities containing Keyword.
type GroupAlias struct {
	Keyword string `yaml:"keyword"`
	Group   string `yaml:"group"`
}

// CategoryInfo describes a category for the remote prompt.
type CategoryInfo struct {
	Name        Category `yaml:"name"`
	Description string   `yaml:"description"`
}

// RemoteConfig holds the remote inference settings.
type RemoteConfig struct {
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"apiKey,omitempty"`
	BatchSize  int           `yaml:"batchSize"`
	BatchDelay time.Duration `yaml:"batchDelay"`
}

// Config aggregates runtime settings persisted to custmapper.yaml.
type Config struct {
	Remote               RemoteConfig   `yaml:"remote"`
	Categories           []CategoryInfo `yaml:"categories"`
	Rules                []RuleSet      `yaml:"rules"`
	GroupAliases         []GroupAlias   `yaml:"groupAliases"`
	ExemplarsPerCategory int            `yaml:"exemplarsPerCategory"`
	// ExemplarSeed makes exemplar sampling reproducible when non-zero.
	ExemplarSeed   int64  `yaml:"exemplarSeed,omitempty"`
	LedgerPath     string `yaml:"ledgerPath"`
	CheckpointPath string `yaml:"checkpointPath"`
	InputColumn    string `yaml:"inputColumn,omitempty"`
}

// DefaultRules returns the built-in keyword table. The systems-integrator list
// is checked before the OEM list.
func DefaultRules() []RuleSet {
	return []RuleSet{
		{Category: CategorySI, Keywords: []string{"LEIDOS", "GDIT", "CACI", "SAIC", "BOOZ ALLEN", "AIC ", "RAICAM", "LOCKHEED", "RAYTHEON", "NORTHROP", "L3HARRIS"}},
		{Category: CategoryOEM, Keywords: []string{"SPACEX", "TESLA", "BOEING", "HONEYWELL", "GE ", "GENERAL ELECTRIC", "SIEMENS", "SCHNEIDER", "ABB", "EATON"}},
		{Category: CategoryEducation, Keywords: []string{"UNIVERSITY", "COLLEGE", "SCHOOL", "INSTITUTE"}},
		{Category: CategoryGovernment, Keywords: []string{"GOVERNMENT", "CITY OF", "STATE OF", "DEPT OF"}},
		{Category: CategoryHealthcare, Keywords: []string{"HOSPITAL", "MEDICAL", "CLINIC"}},
	}
}

// DefaultGroupAliases returns the built-in group names for rule hits.
func DefaultGroupAliases() []GroupAlias {
	return []GroupAlias{
		{Keyword: "SPACEX", Group: "SPACEX GROUP"},
		{Keyword: "GDIT", Group: "GDIT GROUP"},
		{Keyword: "LEIDOS", Group: "LEIDOS GROUP"},
	}
}

// DefaultCategories returns the categories offered to the remote classifier.
func DefaultCategories() []CategoryInfo {
	return []CategoryInfo{
		{Name: CategoryOEM, Description: "original equipment manufacturer"},
		{Name: CategorySI, Description: "systems integrator"},
		{Name: CategoryEMS, Description: "electronics manufacturing services"},
		{Name: CategoryEducation, Description: "school, college or university"},
		{Name: CategoryGovernment, Description: "government body or agency"},
		{Name: CategoryHealthcare, Description: "hospital, clinic or medical provider"},
		{Name: CategoryDistributor, Description: "distributor or reseller"},
		{Name: CategoryUncategorized, Description: "cannot be determined"},
	}
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Remote.Model == "" {
		c.Remote.Model = defaultModel
	}
	if c.Remote.BatchSize <= 0 {
		c.Remote.BatchSize = defaultBatchSize
	}
	// A negative delay disables waiting between batches.
	if c.Remote.BatchDelay == 0 {
		c.Remote.BatchDelay = defaultBatchDelay
	}
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
	}
	if c.Rules == nil {
		c.Rules = DefaultRules()
	}
	if c.GroupAliases == nil {
		c.GroupAliases = DefaultGroupAliases()
	}
	if c.ExemplarsPerCategory <= 0 {
		c.ExemplarsPerCategory = defaultExemplarCount
	}
	if c.LedgerPath == "" {
		c.LedgerPath = defaultLedgerFile
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = defaultCheckpointFile
	}
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	out := c
	out.Categories = append([]CategoryInfo(nil), c.Categories...)
	if c.GroupAliases != nil {
		out.GroupAliases = make([]GroupAlias, len(c.GroupAliases))
		copy(out.GroupAliases, c.GroupAliases)
	}
	if c.Rules != nil {
		out.Rules = make([]RuleSet, len(c.Rules))
		for i, r := range c.Rules {
			out.Rules[i] = RuleSet{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
		}
	}
	return out
}

// CategoryNames returns the configured category labels in order.
func (c Config) CategoryNames() []Category {
	out := make([]Category, 0, len(c.Categories))
	for _, info := range c.Categories {
		out = append(out, info.Name)
	}
	return out
}

// LoadConfig loads configuration from the given path or the default
// custmapper.yaml. A missing file yields the defaults. The API key is then
// taken from the environment, after loading a .env file when one exists.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		c.Remote.APIKey = key
		return
	}
	if c.Remote.APIKey == "" {
		c.Remote.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
}

// SaveConfig persists configuration to disk. The API key is never written.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		path = DefaultConfigFile
	}
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	cfg.Remote.APIKey = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
