package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniterm/aniterm/types"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.TransportKind
	}{
		{"deadline", context.DeadlineExceeded, types.TransportTimeout},
		{"wrapped deadline", fmt.Errorf("doing request: %w", context.DeadlineExceeded), types.TransportTimeout},
		{"net timeout", timeoutErr{}, types.TransportTimeout},
		{"client timeout text", errors.New("Get \"https://x\": Client.Timeout exceeded while awaiting headers"), types.TransportTimeout},
		{"refused", errors.New("dial tcp 1.2.3.4:443: connect: connection refused"), types.TransportConnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := classify("https://api.example", tt.err)
			assert.Equal(t, tt.want, te.Kind)
			assert.Equal(t, "https://api.example", te.URL)
			assert.ErrorIs(t, te, tt.err)
		})
	}
}

func TestClassifiedErrorsAreTransient(t *testing.T) {
	assert.True(t, types.Transient(classify("https://x", context.DeadlineExceeded)))
	assert.True(t, types.Transient(classify("https://x", errors.New("connection refused"))))

	status := &types.TransportError{Kind: types.TransportStatus, URL: "https://x", Status: 403}
	assert.False(t, types.Transient(status))
}

func TestNewDefaultsTimeout(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	require.NotNil(t, c)
}
