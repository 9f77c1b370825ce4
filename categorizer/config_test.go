package categorizer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearKeyEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultModel, cfg.Remote.Model)
	assert.Equal(t, 20, cfg.Remote.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Remote.BatchDelay)
	assert.Equal(t, 3, cfg.ExemplarsPerCategory)
	assert.Equal(t, "Customer_Parent_Mapping.csv", cfg.LedgerPath)
	assert.Equal(t, DefaultRules(), cfg.Rules)
	assert.Empty(t, cfg.Remote.APIKey)
}

func TestLoadConfig_PartialFile(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "custmapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`remote:
  batchSize: 5
  batchDelay: 500ms
rules:
  - category: EMS
    keywords: [JABIL]
ledgerPath: out/ledger.csv
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Remote.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.BatchDelay)
	assert.Equal(t, defaultModel, cfg.Remote.Model)
	assert.Equal(t, []RuleSet{{Category: CategoryEMS, Keywords: []string{"JABIL"}}}, cfg.Rules)
	assert.Equal(t, DefaultGroupAliases(), cfg.GroupAliases)
	assert.Equal(t, "out/ledger.csv", cfg.LedgerPath)
}

func TestLoadConfig_APIKeyFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custmapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  apiKey: from-file\n"), 0o644))

	t.Run("gemini key wins", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", " gemini-key ")
		t.Setenv("GOOGLE_API_KEY", "google-key")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "gemini-key", cfg.Remote.APIKey)
	})

	t.Run("file key before google key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "google-key")
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Remote.APIKey)
	})

	t.Run("google key as fallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "google-key")
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "google-key", cfg.Remote.APIKey)
	})
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "custmapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote: [not, a, map"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTripWithoutKey(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "custmapper.yaml")
	cfg := DefaultConfig()
	cfg.Remote.APIKey = "secret"
	cfg.Remote.BatchDelay = -1
	cfg.ExemplarSeed = 42
	cfg.InputColumn = "#2"

	require.NoError(t, SaveConfig(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.Remote.APIKey = ""
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Rules[0].Keywords[0] = "CHANGED"
	clone.Categories[0].Description = "changed"

	assert.Equal(t, "LEIDOS", cfg.Rules[0].Keywords[0])
	assert.Equal(t, "original equipment manufacturer", cfg.Categories[0].Description)
}

func TestConfig_EmptyGroupAliasesStayEmpty(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "custmapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groupAliases: []\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.GroupAliases)
	assert.Empty(t, cfg.GroupAliases)

	clone := cfg.Clone()
	assert.NotNil(t, clone.GroupAliases)
	assert.Empty(t, clone.GroupAliases)

	p := NewPipeline(cfg, nil)
	assert.NotNil(t, p.Config().GroupAliases)
	assert.Empty(t, p.Config().GroupAliases)
	assert.Equal(t, "SpaceX Inc", p.rules.Group("SpaceX Inc"))
}
