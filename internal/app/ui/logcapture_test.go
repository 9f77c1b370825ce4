package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogCapture_KeepsLastLines(t *testing.T) {
	var last string
	lc := newLogCapture(2, func(s string) { last = s })

	_, err := lc.Write([]byte("one\r\ntwo\n\nthree\n"))
	require.NoError(t, err)

	assert.Equal(t, "two\nthree", lc.String())
	assert.Equal(t, "two\nthree", last)
}

func TestTeeLogger(t *testing.T) {
	lc := newLogCapture(10, nil)
	logger := teeLogger(zap.NewNop(), lc)

	logger.Debug("hidden")
	logger.Info("Ledger saved", zap.Int("records", 3))

	out := lc.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Ledger saved")
	assert.Contains(t, out, `"records": 3`)
}
