package categorizer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"too many requests", fmt.Errorf("generate: %w", genai.APIError{Code: 429}), true},
		{"resource exhausted status", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, true},
		{"resource exhausted message", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"server error", genai.APIError{Code: 500, Status: "INTERNAL"}, false},
		{"port number in message", errors.New("dial tcp 10.0.0.1:4290: connection refused"), false},
		{"request id in message", errors.New("request 4291 timed out"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isQuotaError(tt.err))
		})
	}
}
