// Package http provides the HTTP adapter for the application layer. It is a
// thin translation layer between requests and application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/auth"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	tokens     *auth.TokenManager
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given handlers
func NewServer(config ServerConfig, handlers *Handlers, tokens *auth.TokenManager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		tokens:   tokens,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware logs every request with latency and status
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)
	s.router.POST("/api/auth/login", h.Login)

	// Bootstrap endpoint; creates the organization together with its first
	// admin account, which then logs in through /api/auth/login
	s.router.POST("/api/organizations", h.CreateOrganization)

	api := s.router.Group("/api")
	api.Use(authMiddleware(s.tokens))
	{
		orgs := api.Group("/organizations/:id")
		{
			orgs.GET("", h.GetOrganization)
			orgs.PUT("/settings", requirePermission(auth.PermManageOrg), h.UpdateSettings)

			orgs.POST("/categories", requirePermission(auth.PermManageOrg), h.AddCategory)
			orgs.GET("/categories", h.ListCategories)
			orgs.PUT("/categories/:categoryID/active", requirePermission(auth.PermManageOrg), h.SetCategoryActive)

			orgs.POST("/rules", requirePermission(auth.PermManageRules), h.AddRule)
			orgs.GET("/rules", requirePermission(auth.PermManageRules), h.ListRules)
			orgs.PUT("/rules/:ruleID/active", requirePermission(auth.PermManageRules), h.SetRuleActive)

			orgs.GET("/users", requirePermission(auth.PermManageUsers), h.ListUsers)
			orgs.GET("/expenses", requirePermission(auth.PermViewAll), h.ListOrganizationExpenses)

			orgs.GET("/reports/summary", requirePermission(auth.PermReports), h.GetReportSummary)
			orgs.GET("/reports/export", requirePermission(auth.PermReports), h.ExportReport)
		}

		users := api.Group("/users")
		{
			users.POST("", requirePermission(auth.PermManageUsers), h.CreateUser)
			users.GET("/:id", h.GetUser)
			users.PUT("/:id/manager", requirePermission(auth.PermManageUsers), h.AssignManager)
			users.PUT("/:id/active", requirePermission(auth.PermManageUsers), h.SetUserActive)
		}

		expenses := api.Group("/expenses")
		{
			expenses.POST("", requirePermission(auth.PermSubmitExpenses), h.CreateExpense)
			expenses.GET("", h.ListMyExpenses)
			expenses.GET("/:id", h.GetExpense)
			expenses.POST("/:id/submit", requirePermission(auth.PermSubmitExpenses), h.SubmitExpense)
			expenses.POST("/:id/approve", requirePermission(auth.PermApproveExpenses), h.ApproveExpense)
			expenses.POST("/:id/reject", requirePermission(auth.PermApproveExpenses), h.RejectExpense)
			expenses.POST("/:id/reimburse", requirePermission(auth.PermOverride), h.ReimburseExpense)
			expenses.GET("/:id/history", h.GetExpenseHistory)
			expenses.GET("/:id/can-approve", h.CanApprove)
			expenses.GET("/:id/current-approver", h.GetCurrentApprover)

			expenses.POST("/:id/notes", h.AddNote)
			expenses.GET("/:id/notes", h.ListNotes)

			expenses.POST("/:id/receipts", requirePermission(auth.PermSubmitExpenses), h.UploadReceipt)
			expenses.GET("/:id/receipts", h.ListReceipts)
		}

		api.GET("/approvals/pending", requirePermission(auth.PermApproveExpenses), h.ListPendingApprovals)
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
