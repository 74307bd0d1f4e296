package api

import (
	"net/http"

	"energy-net/internal/api/handlers"
	"energy-net/internal/api/middleware"
	"energy-net/internal/logging"
	"energy-net/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route onto a gin engine.
func NewRouter(deps *handlers.Deps, sessions *session.Store, corsOrigins []string, log logrus.FieldLogger) *gin.Engine {
	log = logging.OrDiscard(log)
	if deps.Log == nil {
		deps.Log = log
	}

	router := gin.New()
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler(log))

	simulationHandler := handlers.NewSimulationHandler(deps)
	streamHandler := handlers.NewStreamHandler(deps, corsOrigins)
	sessionHandler := handlers.NewSessionHandler(deps, sessions)
	strategyHandler := handlers.NewStrategyHandler(deps.Catalog)
	pcsHandler := handlers.NewPCSHandler(deps.PresetDir, log)
	rankHandler := handlers.NewRankHandler(deps)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions.Len()})
	})
	if deps.Recorder != nil {
		router.GET("/metrics", gin.WrapH(deps.Recorder.Handler()))
	}

	api := router.Group("/api/v1")
	{
		api.POST("/simulate", simulationHandler.RunSimulation)
		api.GET("/simulate/stream", streamHandler.StreamSimulation)
		api.GET("/simulate/:id/ledger", simulationHandler.GetLedger)
		api.GET("/episodes", simulationHandler.ListEpisodes)
		api.POST("/compare", simulationHandler.CompareSimulations)

		api.GET("/strategies", strategyHandler.ListStrategies)
		api.GET("/policies", strategyHandler.ListPolicies)
		api.GET("/pcs", pcsHandler.ListPresets)
		api.GET("/options", handlers.ListOptions)
		api.GET("/rank", rankHandler.RankPolicies)

		sessionRoutes := api.Group("/sessions")
		sessionRoutes.POST("", sessionHandler.CreateSession)
		sessionRoutes.GET("/:id", sessionHandler.GetSession)
		sessionRoutes.DELETE("/:id", sessionHandler.DeleteSession)
		sessionRoutes.POST("/:id/iso", sessionHandler.StepISO)
		sessionRoutes.POST("/:id/pcs", sessionHandler.StepPCS)
		sessionRoutes.POST("/:id/step", sessionHandler.Step)
		sessionRoutes.POST("/:id/reset", sessionHandler.ResetSession)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
