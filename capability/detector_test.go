package capability

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestHasLocalAcceleration(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	testCases := []struct {
		name     string
		policy   Policy
		probe    Probe
		expected bool
	}{
		{
			name:     "policy allows and probe succeeds",
			policy:   func() bool { return true },
			probe:    func(ctx context.Context) error { return nil },
			expected: true,
		},
		{
			name:     "policy denies without probing",
			policy:   func() bool { return false },
			probe:    func(ctx context.Context) error { panic("probe must not run") },
			expected: false,
		},
		{
			name:     "probe failure folds into false",
			policy:   func() bool { return true },
			probe:    func(ctx context.Context) error { return fmt.Errorf("runtime down") },
			expected: false,
		},
		{
			name:     "nil probe means unavailable",
			policy:   func() bool { return true },
			probe:    nil,
			expected: false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			detector := NewDetector(testCase.policy, testCase.probe, logger)
			assert.Equal(t, testCase.expected, detector.HasLocalAcceleration(context.Background()))
		})
	}
}

func TestRuntimeDetector(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	t.Run("healthy runtime", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		detector := NewRuntimeDetector(true, server.URL, time.Second, logger)
		assert.True(t, detector.HasLocalAcceleration(context.Background()))
	})

	t.Run("unhealthy runtime", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		detector := NewRuntimeDetector(true, server.URL, time.Second, logger)
		assert.False(t, detector.HasLocalAcceleration(context.Background()))
	})

	t.Run("disallowed deployment", func(t *testing.T) {
		detector := NewRuntimeDetector(false, "http://localhost:11434", time.Second, logger)
		assert.False(t, detector.HasLocalAcceleration(context.Background()))
	})

	t.Run("missing runtime URL", func(t *testing.T) {
		detector := NewRuntimeDetector(true, "", time.Second, logger)
		assert.False(t, detector.HasLocalAcceleration(context.Background()))
	})
}
