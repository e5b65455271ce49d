package httpapi

import (
	"expvar"
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", app.postSearchHandler)
	mux.HandleFunc("/order", app.postOrderHandler)
	mux.HandleFunc("/status/", app.getStatusHandler)
	mux.HandleFunc("/events/", app.getEventsHandler)
	mux.HandleFunc("/storefronts", app.storefrontsHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.HandleFunc("/debug/metrics", app.metricsHandler)
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/openapi.yaml", app.openapiHandler)
	mux.HandleFunc("/docs", app.docsHandler)
	return WithRequestID(WithLogging(mux))
}
