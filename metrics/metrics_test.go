package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()

	r.ResultReported("completed")
	r.ResultReported("completed")
	r.ResultReported("conflict")
	r.SlotWritten()
	r.IntegrityFailure()
	r.ConsistencyFindings("t-1", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.resultsReported.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resultsReported.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.slotWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.integrityFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.consistencyFindings.WithLabelValues("t-1")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := NewRecorder()
	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Get("/api/v1/matches/{matchID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Handle("/metrics", r.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/matches/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/v1/matches/{matchID}", http.MethodGet, "418")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bracket_http_requests_total"))
}
