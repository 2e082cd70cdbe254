package router

import (
	"time"

	"fieldops/internal/config"
	"fieldops/internal/handler"
	"fieldops/internal/middleware"
	"fieldops/internal/repository"
	"fieldops/internal/service"
	"fieldops/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dispatcher *worker.Dispatcher) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	toolkitRepo := repository.NewToolkitRepository(db)
	toolkitSvc := service.NewToolkitService(toolkitRepo, dispatcher, rdb, cfg.ReportStoragePath)

	toolkitsH := handler.NewToolkitsHandler(toolkitSvc)
	historyH := handler.NewStockHistoryHandler(toolkitSvc)
	reportsH := handler.NewReportsHandler(toolkitSvc)

	r.GET("/health", handler.Health(db, rdb))

	v1 := r.Group("/v1/toolkits")
	{
		v1.POST("/add-toolkit", toolkitsH.AddToolkit)
		v1.GET("/get-toolkits", toolkitsH.GetToolkits)
		v1.PUT("/update-toolkit/:id", toolkitsH.UpdateToolkit)
		v1.DELETE("/delete-toolkit/:id", toolkitsH.DeleteToolkit)

		v1.PUT("/update-variant/:toolkitId/:variantId", toolkitsH.UpdateVariant)
		v1.DELETE("/delete-variant/:toolkitId/:variantId", toolkitsH.DeleteVariant)
		v1.PUT("/reduce-stock/:toolkitId/:variantId", toolkitsH.ReduceStock)

		v1.GET("/stock-history/:toolkitId/:variantId", historyH.VariantHistory)
		v1.GET("/toolkit-stock-history/:toolkitId", historyH.ToolkitHistory)

		v1.GET("/search-toolkits", toolkitsH.Search)
		v1.GET("/export-report", reportsH.ExportReport)
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
