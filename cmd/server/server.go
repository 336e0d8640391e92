package server

import (
	"context"
	"net/http"
	"time"

	appkafka "example.com/pixsoul/internal/broker"
	config "example.com/pixsoul/internal/init"
	"example.com/pixsoul/internal/logger"
	"example.com/pixsoul/internal/mailer"
	"example.com/pixsoul/internal/middleware"
	"example.com/pixsoul/internal/session"
	"example.com/pixsoul/internal/store"
	"example.com/pixsoul/internal/upload"

	"github.com/gin-gonic/gin"
)

type Server struct {
	store       store.StoreInterface
	sessions    session.Manager
	mailer      mailer.Mailer
	uploads     upload.Store
	kafkaWriter appkafka.KafkaWriter
	sessionTTL  time.Duration
	uploadDir   string // static dir for the disk backend; empty for MinIO
}

var logg = logger.New()

// New wires the HTTP server's dependencies.
func New(st store.StoreInterface, sessions session.Manager, ml mailer.Mailer, uploads upload.Store, writer appkafka.KafkaWriter, cfg *config.Config) *Server {
	s := &Server{
		store:       st,
		sessions:    sessions,
		mailer:      ml,
		uploads:     uploads,
		kafkaWriter: writer,
		sessionTTL:  cfg.SessionTTL,
	}
	if cfg.UploadBackend == "disk" {
		s.uploadDir = cfg.UploadDir
	}
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthHandler)

	// Public endpoints (no session required)
	r.POST("/signup", s.signupHandler)
	r.POST("/login", s.loginHandler)
	r.POST("/forgot-password", s.forgotPasswordHandler)
	r.POST("/reset-password", s.resetPasswordHandler)

	r.GET("/logout", middleware.RequireAuth(s.sessions), s.logoutHandler)

	if s.uploadDir != "" {
		r.Static("/uploads", s.uploadDir)
	}

	// Session-protected API
	api := r.Group("/api", middleware.RequireAuth(s.sessions))
	{
		api.GET("/user", s.currentUserHandler)
		api.GET("/users/all", s.listUsersHandler)
		api.GET("/friends", s.friendsHandler)
		api.POST("/follow/:id", s.toggleFollowHandler)

		api.GET("/my-memories", s.myMemoriesHandler)
		api.GET("/memories", s.feedHandler)
		api.DELETE("/memories/:id", s.deleteMemoryHandler)
		api.POST("/like/:id", s.toggleLikeHandler)
		api.POST("/comment/:id", s.addCommentHandler)
		api.POST("/upload", s.uploadMemoryHandler)

		api.GET("/notifications", s.notificationsHandler)
		api.POST("/notifications/read", s.markNotificationsReadHandler)
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		logg.Info("server", "Starting HTTP server on "+addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}

// fail writes the uniform failure shape.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
