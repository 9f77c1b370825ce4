package ui

import (
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logCapture keeps the most recent log lines for the on-screen log pane.
type logCapture struct {
	mu       sync.Mutex
	lines    []string
	limit    int
	onChange func(string)
}

func newLogCapture(limit int, onChange func(string)) *logCapture {
	return &logCapture{limit: limit, onChange: onChange}
}

func (l *logCapture) Write(p []byte) (int, error) {
	l.mu.Lock()
	text := strings.ReplaceAll(string(p), "\r\n", "\n")
	for _, part := range strings.Split(text, "\n") {
		if part == "" {
			continue
		}
		l.lines = append(l.lines, part)
	}
	if len(l.lines) > l.limit {
		l.lines = l.lines[len(l.lines)-l.limit:]
	}
	joined := strings.Join(l.lines, "\n")
	l.mu.Unlock()
	if l.onChange != nil {
		l.onChange(joined)
	}
	return len(p), nil
}

func (l *logCapture) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

// teeLogger returns base with an additional console-encoded core writing
// info and above to w.
func teeLogger(base *zap.Logger, w io.Writer) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zapcore.InfoLevel)
	return zap.New(zapcore.NewTee(base.Core(), core))
}
