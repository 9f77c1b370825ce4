package categorizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.resolved(ProvenanceManual, 3)
	m.remoteCall("ok")
	m.batch(BreakerOpen)
	m.breakerOpened()
	m.ledgerSize(10)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.resolved(ProvenanceHardRule, 2)
	m.resolved(ProvenanceRemoteAI, 0)
	m.batch(BreakerClosed)

	assert.Equal(t, 1, testutil.CollectAndCount(m.Resolved))
	path := filepath.Join(t.TempDir(), "custmapper.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `custmapper_resolved_total{source="Hard-Rule"} 2`)
	assert.Contains(t, string(data), `custmapper_batches_total{breaker="closed"} 1`)
}
