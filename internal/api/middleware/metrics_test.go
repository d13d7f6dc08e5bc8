package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddleware(t *testing.T) {
	httpRequestsTotal.Reset()
	httpRequestDuration.Reset()

	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Post("/api/loan/calculate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/loan/calculate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	expectedTotal := `
		# HELP http_requests_total Total number of HTTP requests.
		# TYPE http_requests_total counter
		http_requests_total{method="GET",path="unmatched",status_code="404"} 1
		http_requests_total{method="POST",path="/api/loan/calculate",status_code="200"} 1
	`
	assert.NoError(t, testutil.CollectAndCompare(httpRequestsTotal, strings.NewReader(expectedTotal)))
	assert.Equal(t, 2, testutil.CollectAndCount(httpRequestDuration))
}
