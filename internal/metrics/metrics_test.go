package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := New()

	r.RecordPricesIngested("AAPL", 3)
	r.RecordPricesIngested("AAPL", 0)
	r.RecordPricesIngested("AAPL", 2)
	r.RecordSignal("BUY")
	r.RecordSignal("BUY")
	r.RecordSignal("HOLD")
	r.RecordSkipped()
	r.RecordError("upsert")
	r.RecordCache("hit")

	assert.Equal(t, 5.0, testutil.ToFloat64(r.pricesIngested.WithLabelValues("AAPL")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.signalsUpserted.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signalsUpserted.WithLabelValues("HOLD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.assetsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("upsert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheResults.WithLabelValues("hit")))
}

func TestRecordersAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.RecordSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.assetsSkipped))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.assetsSkipped))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordPricesIngested("AAPL", 1)
		r.RecordSignal("BUY")
		r.RecordSkipped()
		r.RecordError("x")
		r.RecordCache("miss")
		r.ObserveDuration("analyze", time.Now())
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.RecordSignal("BUY")
	r.ObserveDuration("analyze", time.Now())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `alphastream_signals_upserted_total{signal_type="BUY"} 1`)
	assert.Contains(t, rec.Body.String(), "alphastream_operation_duration_seconds_count")
}
