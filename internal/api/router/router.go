package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/safehug/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/safehug/internal/http/middleware"
	"github.com/wolfman30/safehug/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Analysis           *handlers.AnalysisHandler
	Chatbot            *handlers.ChatbotHandler
	MetricsHandler     http.Handler
	JWTSecret          string
	CORSAllowedOrigins []string

	// Per-caller limits on POST /uploads and POST /chatbot/messages. Zero
	// disables them.
	UploadRate   float64
	UploadBurst  int
	ChatbotRate  float64
	ChatbotBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Anonymous callers may upload, analyze and chat; a valid token binds
	// the records to its subject.
	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.OptionalJWT(cfg.JWTSecret))
		if cfg.Analysis != nil {
			limited(public, cfg.UploadRate, cfg.UploadBurst).Post("/uploads", cfg.Analysis.Upload)
			public.Post("/analyses", cfg.Analysis.CreateAnalysis)
			public.Get("/analyses/{analysisID}", cfg.Analysis.GetAnalysis)
			public.Get("/jobs/{jobID}", cfg.Analysis.GetJob)
		}
		if cfg.Chatbot != nil {
			limited(public, cfg.ChatbotRate, cfg.ChatbotBurst).Post("/chatbot/messages", cfg.Chatbot.Reply)
		}
	})

	if cfg.JWTSecret != "" && cfg.Analysis != nil {
		r.Route("/me", func(me chi.Router) {
			me.Use(httpmiddleware.RequireJWT(cfg.JWTSecret))
			me.Get("/analyses", cfg.Analysis.ListMine)
			me.Post("/analyses/{analysisID}/evidence", cfg.Analysis.SaveEvidence)
			me.Get("/analyses/{analysisID}/evidence", cfg.Analysis.GetEvidence)
		})
	}

	return r
}

func limited(r chi.Router, rate float64, burst int) chi.Router {
	if rate <= 0 {
		return r
	}
	return r.With(httpmiddleware.RateLimit(rate, burst))
}
