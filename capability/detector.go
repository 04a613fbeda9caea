// Package capability probes whether accelerated in-process inference is
// available to the current deployment.
package capability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Policy decides whether the deployment is allowed to touch the local
// accelerated runtime at all. Sandboxed environments return false.
type Policy func() bool

// Probe attempts to acquire a handle on the accelerated runtime. It must be
// side-effect free and cheap enough to call per request.
type Probe func(ctx context.Context) error

// Detector answers a single question: can the local inference backend serve
// work right now. It does not cache; permission and runtime health can both
// change between calls. Callers may cache the answer at their own risk.
type Detector struct {
	policy Policy
	probe  Probe
	logger *zap.SugaredLogger
}

func NewDetector(policy Policy, probe Probe, logger *zap.SugaredLogger) *Detector {
	return &Detector{
		policy: policy,
		probe:  probe,
		logger: logger,
	}
}

// NewRuntimeDetector builds a detector backed by the accelerated runtime's
// health endpoint, e.g. http://localhost:11434.
func NewRuntimeDetector(allowed bool, runtimeURL string, timeout time.Duration, logger *zap.SugaredLogger) *Detector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	return NewDetector(
		func() bool { return allowed },
		func(ctx context.Context) error {
			return pingRuntime(ctx, client, runtimeURL)
		},
		logger,
	)
}

// HasLocalAcceleration reports whether local accelerated inference is both
// permitted and reachable. Every probing error folds into false.
func (d *Detector) HasLocalAcceleration(ctx context.Context) bool {
	if d.policy != nil && !d.policy() {
		return false
	}
	if d.probe == nil {
		return false
	}
	if err := d.probe(ctx); err != nil {
		d.logger.Debugw("Local acceleration probe failed", "error", err)
		return false
	}
	return true
}

func pingRuntime(ctx context.Context, client *http.Client, baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("no runtime URL configured")
	}
	url := strings.TrimSuffix(baseURL, "/") + "/health"
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime health check returned HTTP %d", response.StatusCode)
	}
	return nil
}
