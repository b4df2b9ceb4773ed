package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/config"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/handler/http/middleware"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(cfg config.AppConfig, JWTService jwt.Service, payrollHandler PayrollHandler, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.Env != "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "multiweave-folha"),
		slog.String("version", "v1.0.0"),
		slog.String("env", cfg.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payroll/runs", func(r chi.Router) {
			// Requires authentication
			r.Group(func(r chi.Router) {
				r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
				r.Use(middleware.AuthRequired)

				r.Get("/", payrollHandler.ListRuns)
				r.Get("/stats", payrollHandler.RunStats)
				r.Post("/", payrollHandler.StartRun)
				r.Post("/sync", payrollHandler.RunSync)
			})

			r.Route("/{id}", func(r chi.Router) {
				// EventSource cannot send headers; the stream authenticates with its own token.
				r.Get("/stream", payrollHandler.Stream)

				r.Group(func(r chi.Router) {
					r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
					r.Use(middleware.AuthRequired)

					r.Get("/", payrollHandler.GetRun)
					r.Post("/cancel", payrollHandler.CancelRun)
					r.Post("/stream-token", payrollHandler.StreamToken)
					r.Get("/employees/{employeeID}/log", payrollHandler.GetCalculationLog)
				})
			})
		})
	})
	return r
}
