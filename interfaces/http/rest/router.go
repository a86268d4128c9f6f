package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"forgeproxy/application/ports"
	"forgeproxy/application/services"
	"forgeproxy/infrastructure/config"
	"forgeproxy/interfaces/http/rest/handlers"
	"forgeproxy/interfaces/http/rest/middleware"
	"forgeproxy/pkg/auth"
	"forgeproxy/pkg/common"
)

// requestsPerMinute bounds each API key (or client address) across all
// authenticated endpoints.
const requestsPerMinute = 60

// Router configures the HTTP routing for the service
type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     ports.OperationStore
	engine    ports.WorkflowEngine
	model     ports.ModelServer
	callbacks *services.CallbackService
}

// NewRouter creates a new router with all dependencies
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	store ports.OperationStore,
	engine ports.WorkflowEngine,
	model ports.ModelServer,
	callbacks *services.CallbackService,
) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		engine:    engine,
		model:     model,
		callbacks: callbacks,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(rt.logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.APIKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limiter := auth.NewTokenBucketLimiter(requestsPerMinute, time.Minute)
	r.Use(middleware.RateLimit(limiter, rt.logger))

	healthHandler := handlers.NewHealthHandler(rt.cfg, rt.engine, rt.model, rt.logger)
	researchHandler := handlers.NewResearchHandler(rt.store, rt.engine, rt.logger)
	implementHandler := handlers.NewImplementHandler(rt.store, rt.engine, rt.logger)
	statusHandler := handlers.NewStatusHandler(rt.store, rt.logger)
	callbackHandler := handlers.NewCallbackHandler(rt.callbacks, rt.logger)
	chatHandler := handlers.NewChatHandler(rt.model, rt.logger)

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		// Callbacks arrive from the workflow engine, which holds no API
		// key. The operation ID in the path is the shared secret.
		r.Post("/callback/research/{operationID}", callbackHandler.HandleResearch)
		r.Post("/callback/implement/{operationID}", callbackHandler.HandleImplement)

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(rt.cfg.EnableAPIKeyAuth, rt.cfg.APIKey, rt.logger))

			r.Post("/research", researchHandler.Initiate)
			r.Post("/implement", implementHandler.Initiate)
			r.Get("/status/{operationID}", statusHandler.Get)
			r.Post("/chat", chatHandler.Send)
			r.Post("/chat/stream", chatHandler.Stream)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondError(w, http.StatusNotFound, "Route not found: "+r.Method+" "+r.URL.Path)
	})

	return r
}
