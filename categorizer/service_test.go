package categorizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.LedgerPath = filepath.Join(dir, "ledger.csv")
	cfg.CheckpointPath = filepath.Join(dir, "checkpoint.db")
	return cfg
}

func newTestPipeline(cfg Config, gen Generator, sleeper *sleepRecorder, opts ...Option) *Pipeline {
	base := []Option{WithSelector(&stubSelector{}), WithSleeper(sleeper.sleep)}
	return NewPipeline(cfg, gen, append(base, opts...)...)
}

func recordOf(t *testing.T, l *Ledger, name string) Record {
	t.Helper()
	rec, ok := l.Get(name)
	require.True(t, ok, "no record for %q", name)
	return rec
}

func TestPipeline_QuotaOnFirstCall(t *testing.T) {
	cfg := testConfig(t)
	gen := &stubGenerator{reply: quotaAlways}
	p := newTestPipeline(cfg, gen, &sleepRecorder{})

	ledger, summary, err := p.Run(context.Background(), []string{"Lockheed Martin Corp", "Acme University", "Unknown Co"})
	require.NoError(t, err)

	assert.Equal(t, Record{Name: "Lockheed Martin Corp", ParentGroup: "Lockheed Martin Corp", Category: CategorySI, Source: ProvenanceHardRule},
		recordOf(t, ledger, "Lockheed Martin Corp"))
	assert.Equal(t, Record{Name: "Acme University", ParentGroup: "Acme University", Category: CategoryEducation, Source: ProvenanceHardRule},
		recordOf(t, ledger, "Acme University"))
	assert.Equal(t, Record{Name: "Unknown Co", ParentGroup: "Unknown Co", Category: CategoryUncategorized, Source: ProvenanceCheckManually},
		recordOf(t, ledger, "Unknown Co"))
	assert.Equal(t, 1, gen.calls())
	assert.True(t, summary.BreakerOpen)
	assert.True(t, summary.Written)

	onDisk, err := LoadLedger(cfg.LedgerPath)
	require.NoError(t, err)
	if diff := cmp.Diff(ledger.Records(), onDisk.Records()); diff != "" {
		t.Errorf("persisted ledger mismatch (-mem +disk):\n%s", diff)
	}
}

func TestPipeline_ManualRecordUntouched(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.LedgerPath, []byte(
		"Original_Name,Parent_Group,Category,Source\nAcme Co,Acme Holdings,OEM,Manual\n"), 0o644))
	before, err := LoadLedger(cfg.LedgerPath)
	require.NoError(t, err)

	gen := &stubGenerator{reply: answerAll(CategoryDistributor)}
	p := newTestPipeline(cfg, gen, &sleepRecorder{})
	ledger, _, err := p.Run(context.Background(), []string{"ACME CO", "Acme Co", "Contoso Ltd"})
	require.NoError(t, err)

	assert.Equal(t, recordOf(t, before, "Acme Co"), recordOf(t, ledger, "Acme Co"))
	assert.Equal(t, Record{Name: "Contoso Ltd", ParentGroup: "Contoso Ltd Group", Category: CategoryDistributor, Source: ProvenanceRemoteAI},
		recordOf(t, ledger, "Contoso Ltd"))
	require.Equal(t, 1, gen.calls())
	assert.Equal(t, []string{"Contoso Ltd"}, promptNames(gen.prompts[0]))

	data, err := os.ReadFile(cfg.LedgerPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Original_Name,Parent_Group,Category,Source\nAcme Co,Acme Holdings,OEM,Manual\n"))
}

func TestPipeline_Idempotent(t *testing.T) {
	cfg := testConfig(t)
	names := []string{"Boeing Field Services", "Contoso Ltd", "Fabrikam Inc", "Mercy Clinic"}

	first := newTestPipeline(cfg, &stubGenerator{reply: answerAll(CategoryEMS)}, &sleepRecorder{})
	_, summary, err := first.Run(context.Background(), names)
	require.NoError(t, err)
	require.True(t, summary.Written)
	afterFirst, err := os.ReadFile(cfg.LedgerPath)
	require.NoError(t, err)

	gen := &stubGenerator{reply: answerAll(CategoryOEM)}
	second := newTestPipeline(cfg, gen, &sleepRecorder{})
	_, summary, err = second.Run(context.Background(), names)
	require.NoError(t, err)
	afterSecond, err := os.ReadFile(cfg.LedgerPath)
	require.NoError(t, err)

	assert.Equal(t, string(afterFirst), string(afterSecond))
	assert.False(t, summary.Written)
	assert.Zero(t, summary.Unresolved)
	assert.Zero(t, gen.calls())
}

func TestPipeline_BreakerStaysOpen(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.BatchSize = 1
	gen := &stubGenerator{reply: func(call int, prompt string) (string, error) {
		if call == 2 {
			return quotaAlways(call, prompt)
		}
		return answerAll(CategoryEMS)(call, prompt)
	}}
	sleeper := &sleepRecorder{}
	metrics := NewMetrics()
	p := newTestPipeline(cfg, gen, sleeper, WithMetrics(metrics))
	names := []string{"Contoso Ltd", "Fabrikam Inc", "Northwind Traders", "Tailspin Toys", "Wide World Importers"}

	ledger, summary, err := p.Run(context.Background(), names)
	require.NoError(t, err)

	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, ProvenanceRemoteAI, recordOf(t, ledger, "Contoso Ltd").Source)
	for _, name := range names[1:] {
		rec := recordOf(t, ledger, name)
		assert.Equal(t, ProvenanceCheckManually, rec.Source, name)
		assert.Equal(t, CategoryUncategorized, rec.Category, name)
	}
	assert.Equal(t, []time.Duration{cfg.Remote.BatchDelay}, sleeper.waits)
	assert.Equal(t, 5, summary.Batches)
	assert.Equal(t, 2, summary.RemoteCalls)
	assert.Equal(t, 4, summary.ByProvenance[ProvenanceCheckManually])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RemoteCalls.WithLabelValues("quota")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RemoteCalls.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Batches.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BreakerOpen))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.LedgerSize))
}

func TestPipeline_TransientErrorKeepsBreakerClosed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.BatchSize = 2
	gen := &stubGenerator{reply: func(call int, prompt string) (string, error) {
		if call == 1 {
			return "", errors.New("503 service unavailable")
		}
		return answerAll(CategoryGovernment)(call, prompt)
	}}
	sleeper := &sleepRecorder{}
	p := newTestPipeline(cfg, gen, sleeper)
	names := []string{"Contoso Ltd", "Fabrikam Inc", "Northwind Traders"}

	ledger, summary, err := p.Run(context.Background(), names)
	require.NoError(t, err)

	assert.Equal(t, 2, gen.calls())
	assert.False(t, summary.BreakerOpen)
	assert.Equal(t, ProvenanceCheckManually, recordOf(t, ledger, "Contoso Ltd").Source)
	assert.Equal(t, ProvenanceCheckManually, recordOf(t, ledger, "Fabrikam Inc").Source)
	assert.Equal(t, CategoryGovernment, recordOf(t, ledger, "Northwind Traders").Category)
	// no wait after a failed call, none after the last batch
	assert.Empty(t, sleeper.waits)
}

func TestPipeline_EveryInputGetsOneRecord(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.BatchSize = 3
	gen := &stubGenerator{reply: func(call int, prompt string) (string, error) {
		switch call {
		case 1:
			names := promptNames(prompt)
			// answers only the first name
			return names[0] + "|EMS|" + names[0], nil
		case 2:
			return "garbage without pipes", nil
		default:
			return quotaAlways(call, prompt)
		}
	}}
	p := newTestPipeline(cfg, gen, &sleepRecorder{})
	var names []string
	for i := 0; i < 10; i++ {
		names = append(names, fmt.Sprintf("Vendor %02d", i))
	}
	names = append(names, "vendor 03", "VENDOR 07", "Lockheed Martin Corp")

	ledger, summary, err := p.Run(context.Background(), names)
	require.NoError(t, err)

	assert.Equal(t, 11, ledger.Len())
	assert.Equal(t, 11, summary.Added)
	assert.Equal(t, 1, summary.ByProvenance[ProvenanceRemoteAI])
	assert.Equal(t, 1, summary.ByProvenance[ProvenanceHardRule])
	assert.Equal(t, 9, summary.ByProvenance[ProvenanceCheckManually])
	assert.Equal(t, 3, gen.calls())
	for _, name := range names {
		_, ok := ledger.Get(name)
		assert.True(t, ok, name)
	}
}

func TestPipeline_RulePriorityIsStable(t *testing.T) {
	for i := 0; i < 3; i++ {
		cfg := testConfig(t)
		p := newTestPipeline(cfg, &stubGenerator{reply: quotaAlways}, &sleepRecorder{})
		ledger, _, err := p.Run(context.Background(), []string{"Lockheed Tesla Systems"})
		require.NoError(t, err)
		assert.Equal(t, CategorySI, recordOf(t, ledger, "Lockheed Tesla Systems").Category)
	}
}

func TestPipeline_UsesExemplarsOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.BatchSize = 1
	sel := &stubSelector{exemplars: Exemplars{CategorySI: {"Alpha Systems"}}}
	gen := &stubGenerator{reply: answerAll(CategoryEMS)}
	p := newTestPipeline(cfg, gen, &sleepRecorder{}, WithSelector(sel))

	_, _, err := p.Run(context.Background(), []string{"Contoso Ltd", "Fabrikam Inc"})
	require.NoError(t, err)

	assert.Equal(t, 1, sel.calls)
	require.Equal(t, 2, gen.calls())
	for _, prompt := range gen.prompts {
		assert.Contains(t, prompt, "- Alpha Systems: SI")
	}
}

func TestPipeline_NoGenerator(t *testing.T) {
	cfg := testConfig(t)
	p := newTestPipeline(cfg, nil, &sleepRecorder{})

	ledger, summary, err := p.Run(context.Background(), []string{"Contoso Ltd", "Boeing Field Services"})
	require.NoError(t, err)

	assert.Equal(t, ProvenanceCheckManually, recordOf(t, ledger, "Contoso Ltd").Source)
	assert.Equal(t, ProvenanceHardRule, recordOf(t, ledger, "Boeing Field Services").Source)
	assert.Zero(t, summary.RemoteCalls)
	assert.False(t, summary.BreakerOpen)
}

func TestPipeline_CancelLeavesLedgerUntouched(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.BatchSize = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &stubGenerator{reply: func(call int, prompt string) (string, error) {
		cancel()
		return answerAll(CategoryEMS)(call, prompt)
	}}
	p := NewPipeline(cfg, gen, WithSelector(&stubSelector{}))

	_, _, err := p.Run(ctx, []string{"Contoso Ltd", "Fabrikam Inc"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls())
	_, statErr := os.Stat(cfg.LedgerPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_ResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.BatchSize = 2
	names := []string{"Contoso Ltd", "Fabrikam Inc", "Northwind Traders", "Tailspin Toys"}

	cp, err := OpenCheckpoint(cfg.CheckpointPath)
	require.NoError(t, err)
	defer cp.Close()

	interrupted := &sleepRecorder{err: context.Canceled}
	first := newTestPipeline(cfg, &stubGenerator{reply: answerAll(CategoryEMS)}, interrupted, WithCheckpoint(cp))
	_, _, err = first.Run(context.Background(), names)
	require.ErrorIs(t, err, context.Canceled)

	pending, err := cp.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)

	gen := &stubGenerator{reply: answerAll(CategoryOEM)}
	second := newTestPipeline(cfg, gen, &sleepRecorder{}, WithCheckpoint(cp))
	ledger, summary, err := second.Run(context.Background(), names)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Resumed)
	require.Equal(t, 1, gen.calls())
	assert.Equal(t, []string{"Northwind Traders", "Tailspin Toys"}, promptNames(gen.prompts[0]))
	assert.Equal(t, CategoryEMS, recordOf(t, ledger, "Contoso Ltd").Category)
	assert.Equal(t, CategoryEMS, recordOf(t, ledger, "Fabrikam Inc").Category)
	assert.Equal(t, CategoryOEM, recordOf(t, ledger, "Tailspin Toys").Category)

	pending, err = cp.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
