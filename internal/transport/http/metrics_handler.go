package http

import (
	"net/http"

	apierrors "scorelens/internal/errors"
)

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct {
	prometheus http.Handler
}

// NewMetricsHandler wraps the exporter's handler. A nil handler means
// metrics are disabled.
func NewMetricsHandler(prometheus http.Handler) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		apierrors.WriteError(w, apierrors.New(http.StatusServiceUnavailable,
			"SERVICE_UNAVAILABLE", "Metrics are disabled"))
		return
	}
	h.prometheus.ServeHTTP(w, r)
}
