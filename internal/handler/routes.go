package handler

import (
	"net/http"

	"github.com/ClareAI/astra-receptionist-service/internal/adapters/elevenlabs"
	"github.com/ClareAI/astra-receptionist-service/internal/cache"
	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/internal/services/lookup"
	"github.com/ClareAI/astra-receptionist-service/internal/services/provisioning"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/redisutil"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandlerManager wires repositories, services and handlers together.
type HandlerManager struct {
	config              *config.ServiceConfig
	repoManager         repository.RepositoryManager
	provisioningService *provisioning.Service
	lookupService       *lookup.Service
	receptionistHandler *ReceptionistHandler
	authenticator       Authenticator
}

// NewHandlerManager creates and initializes all services and handlers.
func NewHandlerManager(cfg *config.ServiceConfig) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	provider := elevenlabs.NewClient(cfg.ElevenLabsBaseURL, cfg.ElevenLabsAPIKey, cfg.ProviderTimeout)

	// Redis is optional; without it cache invalidation stays process-local.
	var redisSvc redisutil.RedisServiceInterface
	if cfg.RedisHost != "" {
		svc, err := redisutil.NewRedisService(&redisutil.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize redis, cache invalidation stays local", zap.Error(err))
		} else {
			redisSvc = svc
		}
	}

	recCache := cache.NewReceptionistCache(cfg.LookupCacheTTL)
	lookupService := lookup.NewService(repoManager.Receptionist(), recCache, redisSvc)
	provisioningService := provisioning.NewService(provider, repoManager.Receptionist(), lookupService)

	return &HandlerManager{
		config:              cfg,
		repoManager:         repoManager,
		provisioningService: provisioningService,
		lookupService:       lookupService,
		receptionistHandler: NewReceptionistHandler(provisioningService, lookupService),
		authenticator:       NewJWTAuthenticator(cfg.AdminJWTSecret),
	}, nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	if hm.config.EnableCORS {
		router.Use(CORSMiddleware)
	}
	router.Use(LoggingMiddleware)

	router.HandleFunc("/health", hm.HealthCheck).Methods("GET")

	// Public lookup path, rate limited per client
	public := router.PathPrefix("/receptionists").Subrouter()
	public.Use(RateLimitMiddleware(hm.config.PublicRatePerSecond, hm.config.PublicRateBurst))
	public.HandleFunc("/{slug}", hm.receptionistHandler.ResolveReceptionist).Methods("GET")

	// Admin routes, authenticated
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(AuthMiddleware(hm.authenticator))
	admin.HandleFunc("/receptionists", hm.receptionistHandler.ListReceptionists).Methods("GET")
	admin.HandleFunc("/receptionists", hm.receptionistHandler.CreateReceptionist).Methods("POST")
	admin.HandleFunc("/receptionists/{id}", hm.receptionistHandler.GetReceptionist).Methods("GET")
	admin.HandleFunc("/receptionists/{id}", hm.receptionistHandler.UpdateReceptionist).Methods("PATCH")
	admin.HandleFunc("/receptionists/{id}", hm.receptionistHandler.DeleteReceptionist).Methods("DELETE")
	admin.HandleFunc("/agents", hm.receptionistHandler.ListAgents).Methods("GET")
	admin.HandleFunc("/agents/{agentId}", hm.receptionistHandler.GetAgent).Methods("GET")
}

// HealthCheck reports liveness and database reachability.
func (hm *HandlerManager) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := hm.repoManager.Ping(r.Context()); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close releases held resources.
func (hm *HandlerManager) Close() error {
	return hm.repoManager.Close()
}
