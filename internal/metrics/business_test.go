package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine checks that the Prometheus output has a sample for name whose labels
// match the partial pattern. The exporter injects OTel scope labels, hence the regex.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func newTestBusinessMetrics(t *testing.T, namespace string) (*Provider, BusinessMetrics) {
	t.Helper()
	provider, err := NewProvider(namespace)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	bm, err := NewBusinessMetrics(provider.MeterProvider(), namespace)
	require.NoError(t, err)
	return provider, bm
}

func TestBusinessMetrics_Operations(t *testing.T) {
	provider, bm := newTestBusinessMetrics(t, "ops_test")
	ctx := context.Background()

	bm.RecordOperation(ctx, "secrets", "secret_get", "success")
	bm.RecordOperation(ctx, "secrets", "secret_get", "success")
	bm.RecordOperation(ctx, "secrets", "secret_get", "error")
	bm.RecordOperation(ctx, "access", "project_create", "success")

	bm.RecordDuration(ctx, "secrets", "secret_get", 50*time.Millisecond, "success")
	bm.RecordDuration(ctx, "secrets", "secret_get", 60*time.Millisecond, "success")
	bm.RecordDuration(ctx, "rotation", "rotation_chunk", 150*time.Millisecond, "error")

	output := scrape(t, provider)

	assertMetricLine(t, output, `ops_test_operations_total`,
		`domain="secrets".*operation="secret_get".*status="success"`, `2`)
	assertMetricLine(t, output, `ops_test_operations_total`,
		`domain="secrets".*operation="secret_get".*status="error"`, `1`)
	assertMetricLine(t, output, `ops_test_operations_total`,
		`domain="access".*operation="project_create".*status="success"`, `1`)
	assertMetricLine(t, output, `ops_test_operation_duration_seconds_count`,
		`domain="secrets".*operation="secret_get".*status="success"`, `2`)
	assertMetricLine(t, output, `ops_test_operation_duration_seconds_count`,
		`domain="rotation".*operation="rotation_chunk".*status="error"`, `1`)
}

func TestBusinessMetrics_RecordReadRepair(t *testing.T) {
	provider, bm := newTestBusinessMetrics(t, "repair_test")
	ctx := context.Background()

	bm.RecordReadRepair(ctx, "repaired")
	bm.RecordReadRepair(ctx, "repaired")
	bm.RecordReadRepair(ctx, "dropped")

	output := scrape(t, provider)

	assertMetricLine(t, output, `repair_test_read_repair_total`, `outcome="repaired"`, `2`)
	assertMetricLine(t, output, `repair_test_read_repair_total`, `outcome="dropped"`, `1`)
	assert.NotContains(t, output, `outcome="conflict"`)
}

func TestBusinessMetrics_RecordRotationFinished(t *testing.T) {
	provider, bm := newTestBusinessMetrics(t, "rotation_test")
	ctx := context.Background()

	bm.RecordRotationFinished(ctx, "completed", 10, 2)
	bm.RecordRotationFinished(ctx, "completed", 5, 0)
	bm.RecordRotationFinished(ctx, "failed", 0, 0)

	output := scrape(t, provider)

	assertMetricLine(t, output, `rotation_test_rotation_jobs_total`, `status="completed"`, `2`)
	assertMetricLine(t, output, `rotation_test_rotation_jobs_total`, `status="failed"`, `1`)
	assertMetricLine(t, output, `rotation_test_rotation_secrets_total`, `result="rotated"`, `13`)
	assertMetricLine(t, output, `rotation_test_rotation_secrets_total`, `result="failed"`, `2`)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	noOp := NewNoOpBusinessMetrics()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		noOp.RecordOperation(ctx, "secrets", "secret_get", "success")
		noOp.RecordDuration(ctx, "secrets", "secret_get", time.Second, "error")
		noOp.RecordReadRepair(ctx, "repaired")
		noOp.RecordRotationFinished(ctx, "completed", 1, 0)
	})
}
