package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-print-api/internal/middleware"
	"github.com/noah-isme/campus-print-api/internal/models"
	"github.com/noah-isme/campus-print-api/pkg/config"
	"github.com/noah-isme/campus-print-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-print-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-print-api/pkg/middleware/requestid"
)

func registerRoutes(r *gin.Engine, cfg *config.Config, deps *dependencies, logr *zap.Logger) {
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.metricsH.Health)
	r.GET("/ready", deps.metricsH.Ready)
	r.GET("/metrics", deps.metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	optional := middleware.OptionalJWT(deps.auth)
	api := r.Group(cfg.APIPrefix)

	orders := api.Group("/orders")
	orders.POST("", optional, deps.orders.Submit)
	orders.GET("/:token", deps.tracking.Track)
	orders.DELETE("/:token", optional, deps.orders.Cancel)
	orders.GET("/:token/history", deps.tracking.History)
	orders.GET("/:token/receipt", deps.tracking.Receipt)
	orders.GET("/:token/payment", deps.tracking.Payment)
	orders.POST("/:token/payment", deps.payments.Pay)

	api.GET("/submitters/:id/orders/latest", deps.tracking.LatestBySubmitter)
	api.POST("/pricing/quote", deps.payments.Quote)
	api.GET("/files/download", deps.files.Download)

	auth := api.Group("/auth")
	auth.POST("/login", deps.authH.Login)
	auth.POST("/faculty/login", deps.authH.FacultyLogin)
	auth.GET("/me", middleware.JWT(deps.auth), deps.authH.Me)

	admin := api.Group("/admin", middleware.JWT(deps.auth), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.GET("/dashboard", deps.admin.Dashboard)
	admin.GET("/orders", deps.admin.ListOrders)
	admin.GET("/orders/:id", deps.admin.GetOrder)
	admin.GET("/orders/:id/file", deps.admin.OrderFile)
	admin.PATCH("/orders/:id/status", middleware.Audit(deps.audit, logr, models.AuditActionStatusUpdate, "order"), deps.orders.UpdateStatus)
	admin.GET("/payments", deps.admin.ListPayments)
	admin.GET("/reports/revenue", deps.admin.Revenue)
	admin.GET("/reports/revenue/export", deps.admin.ExportRevenue)
	admin.GET("/reports/status", deps.admin.StatusReport)
	admin.POST("/cleanup", deps.admin.TriggerCleanup)
	admin.GET("/metrics", deps.metricsH.Snapshot)

	superadmin := admin.Group("", middleware.RequireRoles(models.RoleSuperAdmin))
	superadmin.POST("/users", deps.authH.RegisterAdmin)
	superadmin.POST("/faculties", deps.authH.CreateFaculty)
}
