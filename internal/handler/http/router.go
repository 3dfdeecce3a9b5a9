package http

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Env            string
	Version        string
	AllowedOrigins []string
	// ManualSyncPerMinute bounds device-triggering requests per company.
	ManualSyncPerMinute int
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, syncHandler AttendanceSyncHandler, metricsHandler AttendanceMetricsHandler, settingsHandler AttendanceSettingsHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-sync"),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Handle("/metrics", promhttp.Handler())

	perMinute := cfg.ManualSyncPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	deviceLimiter := httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(companyKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.TooManyRequests(w, "Too many device requests, try again later")
		}),
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			// EventSource cannot set headers, so the stream passes ?token=
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, tokenFromQuery))
			r.Use(middleware.AuthRequired)
			r.Use(middleware.RequireCompany)

			r.Route("/attendance-sync", func(r chi.Router) {
				// Device sessions are exclusive and slow
				r.Group(func(r chi.Router) {
					r.Use(deviceLimiter)
					r.Post("/manual/{deviceAddress}", syncHandler.Manual)
					r.Post("/incremental/{deviceAddress}", syncHandler.Incremental)
					r.Get("/device-info/{deviceAddress}", syncHandler.DeviceInfo)
				})
				r.Get("/from-database/{deviceAddress}", syncHandler.FromDatabase)
				r.Get("/status/{deviceAddress}", syncHandler.Status)
				r.Get("/events", syncHandler.Events)
			})

			r.Route("/attendance-metrics", func(r chi.Router) {
				r.Get("/leaderboard", metricsHandler.Leaderboard)
				r.Get("/employees/{employeeDeviceId}", metricsHandler.Employee)
			})

			r.Route("/attendance-settings", func(r chi.Router) {
				r.Get("/", settingsHandler.Get)
				r.Put("/", settingsHandler.Update)
				r.Get("/history", settingsHandler.History)
			})
		})
	})
	return r
}

func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}

func companyKey(r *http.Request) (string, error) {
	return jwt.CompanyID(r.Context())
}
