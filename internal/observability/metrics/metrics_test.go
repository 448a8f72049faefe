package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("customer_id", "456"),
		attribute.String("step", "insert_invoice"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("org_id"), attrs[0].Key)
	assert.Equal(t, attribute.Key("step"), attrs[1].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordBuild(ctx, "1", "ok")
	m.RecordInvoiceEmitted(ctx, "1", 100)
	m.RecordEmissionFailure(ctx, "1", "insert_invoice")
	m.RecordLinkConflicts(ctx, "1", 2)
	m.RecordSubmit(ctx, "1", 2, 1, time.Second)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordInvoiceEmitted(context.Background(), "1", 357500)
}

func TestRecordSubmitOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := New(Config{ServiceName: "crewbill"}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSubmit(ctx, "7", 3, 3, 2*time.Second)
	m.RecordSubmit(ctx, "7", 3, 1, time.Second)
	m.RecordSubmit(ctx, "7", 2, 0, time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	outcomes := map[string]uint64{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			if md.Name != "crewbill_bulk_submit_duration_seconds" {
				continue
			}
			hist, ok := md.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, point := range hist.DataPoints {
				outcome, _ := point.Attributes.Value("outcome")
				outcomes[outcome.AsString()] += point.Count
			}
		}
	}
	assert.Equal(t, map[string]uint64{"all": 1, "partial": 1, "none": 1}, outcomes)
}

func TestHTTPMetricsObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, testutil.CollectAndCount(m.requests))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}
