package health

import (
	"net/http"
	"sync/atomic"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readiness reports whether the service should receive traffic. It turns
// unready once draining starts so load balancers stop routing before
// shutdown completes.
type Readiness struct {
	draining atomic.Bool
}

// Drain marks the service as shutting down.
func (rd *Readiness) Drain() {
	rd.draining.Store(true)
}

// Readyz returns 200 "ready\n", or 503 "draining\n" after Drain.
func (rd *Readiness) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if rd.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("draining\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
