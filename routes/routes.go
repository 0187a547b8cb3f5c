package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/arenadesk/scorekeeper/handlers"
	"github.com/arenadesk/scorekeeper/middleware"
	"github.com/arenadesk/scorekeeper/models"
)

// SetupRoutes wires every handler into the router. Reads are public so venue
// displays can poll without tokens; all writes go through the JWT perimeter.
// exportHandler is nil when object storage is not configured.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	scoreHandler *handlers.ScoreHandler,
	queueHandler *handlers.QueueHandler,
	bracketHandler *handlers.BracketHandler,
	rankingHandler *handlers.RankingHandler,
	exportHandler *handlers.ExportHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Post("/auth/login", authHandler.Login)

	router.Get("/ws/events/{eventID}", webSocketHandler.ServeWs)

	router.Route("/events/{eventID}", func(r chi.Router) {
		// Public read surface.
		r.Get("/queue", queueHandler.List)
		r.Get("/bracket", bracketHandler.Get)
		r.Get("/rankings", rankingHandler.List)

		// Score intake is open to scoring tables; the submissions stay pending
		// until a judge reviews them.
		r.Post("/submissions", scoreHandler.Submit)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.Authorize(models.RoleJudge, models.RoleAdmin))

			r.Get("/submissions/pending", scoreHandler.ListPending)
			r.Post("/queue/sync/seeding", queueHandler.SyncSeeding)
			r.Post("/queue/sync/bracket", queueHandler.SyncBracket)
			r.Post("/queue", queueHandler.Enqueue)
			r.Post("/queue/reorder", queueHandler.Reorder)
			r.Post("/resync", scoreHandler.Resync)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(auth.Authorize(models.RoleAdmin))

			r.Get("/audit", scoreHandler.AuditLog)
			r.Post("/bracket/generate", bracketHandler.Generate)
			r.Post("/bracket/resolve-byes", bracketHandler.ResolveByes)
			r.Post("/rankings/recalculate", rankingHandler.Recalculate)
			r.Post("/queue/populate/seeding", queueHandler.PopulateFromSeeding)
			r.Post("/queue/populate/bracket", queueHandler.PopulateFromBracket)

			if exportHandler != nil {
				r.Post("/exports/rankings", exportHandler.ExportRankings)
				r.Post("/exports/bracket", exportHandler.ExportBracket)
			}
		})
	})

	router.Route("/submissions/{submissionID}", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(auth.Authorize(models.RoleJudge, models.RoleAdmin))

		r.Post("/accept", scoreHandler.Accept)
		r.Post("/reject", scoreHandler.Reject)
	})

	router.Route("/queue/{itemID}", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(auth.Authorize(models.RoleJudge, models.RoleAdmin))

		r.Post("/call", queueHandler.Call)
		r.Patch("/status", queueHandler.UpdateStatus)
	})
}
