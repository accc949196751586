package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/auth"
	"github.com/bytevault/bytevault/internal/conf"
	"github.com/bytevault/bytevault/internal/pkg/logger"
	"github.com/bytevault/bytevault/internal/storage/service"
)

// HTTPServer serves the storage engine's REST API
type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// NewHTTPServer wires the routes and builds the server
func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	jwtManager *auth.JWTManager,
	fileService *service.FileService,
	adminService *service.AdminService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(jwtManager))

	files := api.Group("/files")
	{
		files.POST("", fileService.Upload)
		files.GET("/:id", fileService.GetFile)
		files.GET("/:id/instances", fileService.ListInstances)
		files.GET("/:id/url", fileService.PublicURL)
		files.GET("/:id/content", fileService.Download)
		files.DELETE("/:id", fileService.DeleteFile)
	}
	api.GET("/checksums/:checksum", fileService.GetFileByChecksum)

	admin := api.Group("/admin")
	admin.Use(auth.RequireAdmin())
	{
		admin.POST("/buckets", adminService.CreateBucket)
		admin.GET("/buckets", adminService.ListBuckets)
		admin.GET("/buckets/:id", adminService.GetBucket)
		admin.PUT("/buckets/:id", adminService.UpdateBucket)
		admin.DELETE("/buckets/:id", adminService.DeleteBucket)
		admin.GET("/buckets/:id/usage", adminService.BucketUsage)

		admin.POST("/dimensions", adminService.CreateDimension)
		admin.GET("/dimensions", adminService.ListDimensions)
		admin.GET("/dimensions/:id", adminService.GetDimension)
		admin.PUT("/dimensions/:id", adminService.UpdateDimension)
		admin.DELETE("/dimensions/:id", adminService.DeleteDimension)

		admin.GET("/orphans", adminService.ListOrphans)
		admin.GET("/orphans/count", adminService.CountOrphans)
		admin.POST("/orphans/:id/cleanup", adminService.QueueOrphanCleanup)
		admin.POST("/orphans/sweep", adminService.SweepOrphans)

		admin.GET("/queue/stats", adminService.QueueStats)
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: log,
	}
}

// Start blocks serving requests until Stop or a listener error
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
