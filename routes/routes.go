package routes

import (
	"net/http"
	"time"

	_ "github.com/Dosada05/tournament-bracket/docs" // swagger spec
	"github.com/Dosada05/tournament-bracket/handlers"
	"github.com/Dosada05/tournament-bracket/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Config struct {
	JWTSecret       []byte
	OperatorKeyHash []byte
	CORSOrigins     []string
	// Metrics instruments every request; MetricsHandler serves /metrics.
	Metrics        func(http.Handler) http.Handler
	MetricsHandler http.Handler
	Health         http.HandlerFunc
}

type Handlers struct {
	Bracket   *handlers.BracketHandler
	Match     *handlers.MatchHandler
	Operator  *handlers.OperatorHandler
	WebSocket *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, cfg Config, h Handlers) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics)
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.OperatorKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Health != nil {
		router.Get("/healthz", cfg.Health)
	}
	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler)
	}
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	authenticate := middleware.Authenticate(cfg.JWTSecret)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			// Публичные маршруты просмотра
			r.Get("/bracket", h.Bracket.GetBracket)
			r.Get("/matches", h.Bracket.ListMatches)

			// Построение сетки: только организаторы и админы
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.RequireRoles(middleware.RoleOrganizer, middleware.RoleAdmin))
				r.Post("/bracket", h.Bracket.CreateBracket)
			})
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", h.Match.GetMatch)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/start", h.Match.StartMatch)
				r.Post("/result", h.Match.ReportResult)
			})
		})

		r.Route("/operator/tournaments/{tournamentID}", func(r chi.Router) {
			r.Use(middleware.OperatorKey(cfg.OperatorKeyHash))
			r.Get("/consistency", h.Operator.ValidateConsistency)
			r.Post("/resume", h.Operator.ResumeAdvancement)
		})
	})
}
