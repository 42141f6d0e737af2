// Package app wires the warden server runtime: config, logging, storage, HTTP routes, and the strength meter.
//
// It owns every long-lived resource (DB pool, metrics registry) and hands them to the packages that need them.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"warden/cmd/credential"
	credentialapi "warden/cmd/internal/credential/api"
	"warden/cmd/internal/meter"
	"warden/cmd/internal/origins"
	"warden/cmd/security/password"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// memStore is used for in-memory store mode.
type memStore struct {
	creds credential.Store
}

func (s memStore) Close(_ context.Context) error {
	s.creds.Close()
	return nil
}

// App is the warden server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	registry    *prometheus.Registry
	httpMetrics *HTTPMetrics

	api   *credentialapi.Handler
	meter *meter.Gateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	engine, err := password.NewEngine(pwCfg)
	if err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, creds, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := wire(cfg, log, engine, creds)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	a.store = st
	a.dbPool = dbPool
	a.dbEnabled = dbEnabled

	log.Info("password.policy",
		"min_len", pwCfg.Policy.MinLength,
		"max_len", pwCfg.Policy.MaxLength,
		"argon2_memory_kib", pwCfg.Params.MemoryKiB,
		"argon2_iterations", pwCfg.Params.Iterations,
		"argon2_parallelism", pwCfg.Params.Parallelism,
	)

	return a, nil
}

// wire builds the service graph on top of an engine and credential store.
func wire(cfg Config, log Logger, engine *password.Engine, creds credential.Store) (*App, error) {
	svc, err := credential.NewService(engine, creds)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()

	httpMetrics, err := NewHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}
	apiMetrics, err := credentialapi.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	api, err := credentialapi.NewHandler(log, svc, credentialapi.LoadConfigFromEnv(), apiMetrics)
	if err != nil {
		return nil, err
	}

	allow, invalid := origins.Parse(cfg.CORSAllowedOrigins)
	for _, bad := range invalid {
		log.Warn("meter.origin.invalid", "origin", bad)
	}
	gw, err := meter.NewGateway(log, engine, meter.LoadConfigFromEnv(allow))
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:         cfg,
		log:         log,
		registry:    reg,
		httpMetrics: httpMetrics,
		api:         api,
		meter:       gw,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.registry, a.api, a.meter)
	return newHandler(mux, a.cfg, a.log, a.httpMetrics)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)
	a.log.Info("server.urls",
		"api", base+"/v1/passwords/validate",
		"meter", wsBaseURL(base)+meterPath,
		"metrics", base+"/metrics",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.store.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.shutdown(shutdownCtx, srv); err != nil {
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// shutdowner is the part of *http.Server that shutdown needs.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown drains the server, then releases the store (DB pool). The store is
// closed even when draining fails.
func (a *App) shutdown(ctx context.Context, srv shutdowner) error {
	srvErr := srv.Shutdown(ctx)
	if srvErr != nil {
		a.log.Error("server.shutdown.fail", "err", srvErr)
	}

	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.log.Error("store.close.fail", "err", err)
		}
	}
	return srvErr
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between the Postgres credential store and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, credential.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		creds := credential.NewMemoryStore()
		return memStore{creds: creds}, nil, false, creds, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)

	// Ownership model:
	// - app owns pool lifecycle
	// - PostgresStore.Close() is a no-op
	creds, err := credential.NewPostgresStore(pool, credential.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, err
	}

	if cfg.DBEnsureSchema {
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := creds.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			pool.Close()
			return nil, nil, false, nil, err
		}
		log.Info("db.schema.ready", "schema", cfg.DBSchema)
	}

	return dbStore{pool: pool, creds: creds}, pool, true, creds, nil
}

type dbStore struct {
	pool  *pgxpool.Pool
	creds credential.Store
}

func (s dbStore) Close(_ context.Context) error {
	if s.creds != nil {
		s.creds.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
