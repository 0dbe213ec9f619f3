package api

import (
	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/orcs/pkg/api/handler"
	"github.com/stevelan1995/orcs/pkg/api/middleware"
	"github.com/stevelan1995/orcs/pkg/core/engine"
	"github.com/stevelan1995/orcs/pkg/core/event"
)

// SetupRouter 设置路由
// bus为nil时不注册事件流端点
func SetupRouter(eng *engine.Engine, bus *event.Bus, version string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	workflowHandler := handler.NewWorkflowHandler(eng)
	healthHandler := handler.NewHealthHandler(version)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// WebSocket事件流
	if bus != nil {
		eventsHandler := handler.NewEventsHandler(bus)
		router.GET("/ws/events", eventsHandler.Stream)
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", workflowHandler.List)
			workflows.POST("", workflowHandler.Submit)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.POST("/:id/execute", workflowHandler.Execute)
			workflows.GET("/:id/plan", workflowHandler.Plan)
		}

		history := v1.Group("/history")
		{
			history.GET("", workflowHandler.History)
			history.GET("/:id", workflowHandler.HistoryReport)
		}
	}

	return router
}
