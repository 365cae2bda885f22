package router

import (
	"net/http"

	_ "clinical-access/docs"
	"clinical-access/internal/config"
	"clinical-access/internal/domain/accessgrants"
	"clinical-access/internal/domain/clinics"
	"clinical-access/internal/domain/encounters"
	"clinical-access/internal/domain/patients"
	"clinical-access/internal/domain/symptoms"
	"clinical-access/internal/middleware"
	"clinical-access/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"
)

type Options struct {
	Config   *config.Config
	Logger   logger.Logger
	Services *Services

	// Gatherer de /metrics; normalmente el mismo registry que recibió NewServices.
	Gatherer prometheus.Gatherer
}

func NewRouter(opts Options) http.Handler {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	svc := opts.Services

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recover(log))

	r.Use(middleware.AuthContext(svc.Verifier, middleware.AuthOptions{
		AllowDebugHeaders: cfg.AuthDebugHeaders,
		Logger:            log,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	var scanLimiter func(http.Handler) http.Handler
	if cfg.ScanRateRPS > 0 {
		scanLimiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			Rate:  rate.Limit(cfg.ScanRateRPS),
			Burst: cfg.ScanRateBurst,
		}).Handler
	}

	// Rutas por módulo
	patients.RegisterRoutes(r, svc.Patients, svc.Issuer, svc.Grants)
	clinics.RegisterRoutes(r, svc.Clinics, svc.Issuer)
	encounters.RegisterRoutes(r, svc.Encounters, svc.Grants)
	symptoms.RegisterRoutes(r, svc.Symptoms)
	accessgrants.RegisterRoutes(r, svc.Grants, accessgrants.HandlerOptions{
		OpaqueScanErrors: cfg.ScanOpaqueErrors,
		ScanLimiter:      scanLimiter,
	})

	return r
}
