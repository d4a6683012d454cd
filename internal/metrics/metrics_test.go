package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/patients/{id}", "404"))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/patients/abc-123", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/patients/{id}", "404")))
}

func TestRecordStoreOperation(t *testing.T) {
	okBefore := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("update", "success"))
	errBefore := testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("update", "error"))

	RecordStoreOperation("update", nil, time.Millisecond)
	RecordStoreOperation("update", errors.New("boom"), time.Millisecond)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("update", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(StoreOperationsTotal.WithLabelValues("update", "error")))
}

func TestRecordSnapshotSetsGauge(t *testing.T) {
	RecordSnapshot("subscription", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(SnapshotRecords))
}

func TestSystemCollectorCollect(t *testing.T) {
	reg := prometheus.NewRegistry()
	sc := NewSystemCollector(reg, "panel-test")
	sc.Collect()

	assert.Greater(t, testutil.ToFloat64(sc.goroutines.WithLabelValues(sc.service)), float64(0))
}
