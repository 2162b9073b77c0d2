package metrics

import "net/http"

// NewStatusMux assembles this node's Prometheus scrape, health, readiness,
// and liveness surface onto one mux, grounded on the teacher's
// http.Handle("/health", ...) / http.Handle("/ready", ...) /
// http.Handle("/live", ...) wiring ahead of a single http.ListenAndServe in
// cmd/warren/main.go — generalized here to a ServeMux the caller starts its
// own *http.Server against instead of mutating http.DefaultServeMux.
func NewStatusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler())
	mux.Handle("/livez", LivenessHandler())
	return mux
}
