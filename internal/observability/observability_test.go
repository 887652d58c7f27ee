package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiopulse/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without registry conflicts
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Registry())
			assert.NotNil(t, m.Pipeline)
		})
	}
	wg.Wait()
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Pipeline.RecordFrame(time.Millisecond, false)

	e := NewEndpoint("127.0.0.1:0", m)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "audiopulse_frames_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestErrorHookCountsByCategory(t *testing.T) {
	// Hooks are process-wide, so this test is not parallel
	m, err := NewMetrics()
	require.NoError(t, err)

	errors.AddErrorHook(m.ErrorHook())
	t.Cleanup(errors.ClearErrorHooks)

	_ = errors.New(nil).Component("audiocore").Category(errors.CategoryAudioSource).Build()

	rec := httptest.NewRecorder()
	NewEndpoint("", m).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Contains(t, rec.Body.String(), `audiopulse_errors_total{category="audio-source",component="audiocore"} 1`)
}

func TestEndpointRunServesUntilCancelled(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	e := NewEndpoint("127.0.0.1:0", m)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+e.Addr().String()+"/metrics", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), "audiopulse_beats_total")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("endpoint did not shut down")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestEndpointRunListenError(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	err = NewEndpoint("256.0.0.1:99999", m).Run(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}
