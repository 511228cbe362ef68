package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/services"
)

// RouterConfig carries everything the HTTP layer depends on.
type RouterConfig struct {
	Accounts  *services.AccountService
	Gate      *services.LoginGate
	Records   *services.RecordService
	Snapshots *services.SnapshotExporter
	Forwarder *services.Forwarder

	// MetricsHandler is mounted at /metrics when set
	MetricsHandler http.Handler

	JWTSecret     string
	JWTExpiration time.Duration
	RequireAuth   bool

	Logger *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Accounts, cfg.Gate, cfg.JWTSecret, cfg.JWTExpiration, cfg.Logger)
	recordHandler := NewRecordHandler(cfg.Records, cfg.Snapshots, cfg.Forwarder, cfg.Logger)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"therapy-records"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Get("/lockout/{serial}", authHandler.LockoutStatus)
	})

	r.Route("/records", func(r chi.Router) {
		if cfg.RequireAuth {
			r.Use(NewAuthMiddleware(cfg.JWTSecret))
		}

		r.Get("/", recordHandler.ListRecords)
		r.Post("/", recordHandler.CreateRecord)
		r.Get("/count", recordHandler.CountRecords)
		r.Get("/search", recordHandler.SearchRecords)
		r.Get("/export", recordHandler.ExportSnapshot)
		r.Get("/export.xlsx", recordHandler.ExportSpreadsheet)
		r.Post("/forward", recordHandler.ForwardSnapshot)
		r.Get("/{id}", recordHandler.GetRecord)
		r.Put("/{id}", recordHandler.UpdateRecord)
		r.Delete("/{id}", recordHandler.DeleteRecord)
	})

	return r
}
