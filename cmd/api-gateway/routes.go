package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/handler"
	"github.com/noah-isme/edupacket-api/internal/middleware"
	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/pkg/config"
	"github.com/noah-isme/edupacket-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edupacket-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edupacket-api/pkg/middleware/requestid"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

func newRouter(cfg *config.Config, app *application, db *sqlx.DB, local *storage.LocalGateway, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(app.metrics))
	r.Use(middleware.AuditOrigin())
	r.MaxMultipartMemory = 8 << 20

	metricsHandler := handler.NewMetricsHandler(app.metrics, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if app.metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if local != nil {
		files := handler.NewFilesHandler(local)
		r.GET("/files/:version/:name", files.Serve)
	}

	gate := app.access
	authHandler := handler.NewAuthHandler(app.auth)
	userHandler := handler.NewUserHandler(app.accounts)
	documentHandler := handler.NewDocumentHandler(app.documents, app.lifecycle, gate)
	subjectHandler := handler.NewSubjectHandler(app.subjects, app.lifecycle)
	adminHandler := handler.NewAdminHandler(app.lifecycle, app.exporter)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.GET("/ping", authHandler.Ping)
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.Require(gate, models.CapViewProfile), authHandler.Me)

	admin := api.Group("/admin", middleware.Authenticated(gate))
	admin.GET("/pending-users", middleware.Require(gate, models.CapManageAccounts), userHandler.Pending)
	admin.POST("/approve-user", middleware.Require(gate, models.CapManageAccounts), userHandler.Approve)
	admin.POST("/reject-user", middleware.Require(gate, models.CapManageAccounts), userHandler.Reject)
	admin.POST("/purge", middleware.Require(gate, models.CapMaintenance), adminHandler.Purge)
	admin.GET("/deleted/export", middleware.Require(gate, models.CapExportLedger), adminHandler.ExportDeleted)

	pdfs := api.Group("/pdfs")
	pdfs.GET("", documentHandler.ListSubjectFiles)
	pdfs.POST("/upload", middleware.Require(gate, models.CapUploadDocument), documentHandler.UploadSubjectFile)
	pdfs.GET("/deleted", middleware.Require(gate, models.CapListDeleted), documentHandler.ListDeletedSubjectFiles)
	pdfs.POST("/cleanup-legacy", middleware.Require(gate, models.CapMaintenance), documentHandler.CleanupLegacy)
	pdfs.DELETE("/all", middleware.Require(gate, models.CapBulkDelete), documentHandler.DeleteAllSubjectFiles)
	pdfs.DELETE("/subject/:classGroup", middleware.Require(gate, models.CapBulkDelete), documentHandler.DeleteClassGroupFiles)
	pdfs.PUT("/:id", middleware.Require(gate, models.CapEditContent), documentHandler.UpdateSubjectFile)
	pdfs.DELETE("/:id", middleware.Require(gate, models.CapSoftDelete), documentHandler.DeleteSubjectFile)
	pdfs.POST("/:id/restore", middleware.Require(gate, models.CapRestore), documentHandler.RestoreSubjectFile)

	subjects := api.Group("/subjects")
	subjects.GET("", subjectHandler.List)
	subjects.POST("", middleware.Require(gate, models.CapCreateSubject), subjectHandler.Create)
	subjects.GET("/deleted", middleware.Require(gate, models.CapListDeleted), subjectHandler.ListDeleted)
	subjects.DELETE("/all", middleware.Require(gate, models.CapBulkDelete), subjectHandler.DeleteAll)
	subjects.PUT("/:id", middleware.Require(gate, models.CapEditContent), subjectHandler.Update)
	subjects.DELETE("/:id", middleware.Require(gate, models.CapSoftDelete), subjectHandler.Delete)
	subjects.POST("/:id/restore", middleware.Require(gate, models.CapRestore), subjectHandler.Restore)

	for _, category := range models.NotificationCategories {
		group := api.Group("/" + string(category))
		group.GET("", documentHandler.ListNotifications(category))
		group.POST("/upload", middleware.Require(gate, models.CapUploadDocument), documentHandler.UploadNotification(category))
		group.GET("/deleted", middleware.Require(gate, models.CapListDeleted), documentHandler.ListDeletedNotifications(category))
		group.GET("/:id", documentHandler.GetNotification(category))
		group.GET("/:id/download", documentHandler.DownloadNotification(category))
		group.DELETE("/:id", middleware.Require(gate, models.CapSoftDelete), documentHandler.DeleteNotification(category))
		group.POST("/:id/restore", middleware.Require(gate, models.CapRestore), documentHandler.RestoreNotification(category))
	}

	return r
}
