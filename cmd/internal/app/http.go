package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	credentialapi "warden/cmd/internal/credential/api"
	"warden/cmd/internal/meter"
)

// meterPath is where the live strength meter WebSocket is mounted.
const meterPath = "/v1/passwords/meter"

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	reg *prometheus.Registry,
	api *credentialapi.Handler,
	gw *meter.Gateway,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	if api != nil {
		api.Register(mux)
	}

	if gw != nil {
		mux.Handle(meterPath, gw)
	}
}

// newHandler wraps mux with the middleware chain, outermost first: request
// logging, HTTP metrics, security headers, CORS.
func newHandler(mux http.Handler, cfg Config, log Logger, m *HTTPMetrics) http.Handler {
	var h http.Handler = mux
	h = WithCORS(h, cfg, log)
	h = WithSecurityHeaders(h, cfg.HSTS)
	h = WithHTTPMetrics(h, m)
	return WithRequestLogging(h, log)
}
