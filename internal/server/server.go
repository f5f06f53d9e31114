// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo   repository.UserRepository
	friendRepo repository.FriendRepository
	chatRepo   repository.ChatRepository
	postRepo   repository.PostRepository
	notifRepo  repository.NotificationRepository
	blockRepo  repository.BlockRepository
	reportRepo repository.ReportRepository
	letterRepo repository.LetterRepository

	notifier *notifications.Notifier
	hub      *notifications.Hub

	userService         *service.UserService
	friendService       *service.FriendService
	chatService         *service.ChatService
	postService         *service.PostService
	notificationService *service.NotificationService
	moderationService   *service.ModerationService
	letterService       *service.LetterService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Used by tests and by bootstrap layers that establish DB/Redis themselves.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)
	prom := middleware.InitMetrics("quill-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       repository.NewUserRepository(db),
		friendRepo:     repository.NewFriendRepository(db),
		chatRepo:       repository.NewChatRepository(db),
		postRepo:       repository.NewPostRepository(db),
		notifRepo:      repository.NewNotificationRepository(db),
		blockRepo:      repository.NewBlockRepository(db),
		reportRepo:     repository.NewReportRepository(db),
		letterRepo:     repository.NewLetterRepository(db),
	}

	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	blobs := storage.NoopStore{}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	}

	server.notificationService = service.NewNotificationService(server.notifRepo, server.notifier)
	server.userService = service.NewUserService(server.userRepo, server.friendRepo, server.blockRepo)
	server.friendService = service.NewFriendService(
		server.friendRepo, server.userRepo, server.blockRepo, server.notificationService)
	server.chatService = service.NewChatService(
		server.chatRepo, server.friendRepo, server.userRepo, blobs, server.notificationService)
	server.postService = service.NewPostService(
		server.postRepo, commentRepo, reactionRepo,
		server.friendRepo, server.blockRepo, server.notificationService)
	server.moderationService = service.NewModerationService(
		server.userRepo, server.friendRepo, server.chatRepo, server.postRepo,
		commentRepo, reactionRepo, server.notifRepo, server.blockRepo,
		server.reportRepo, server.letterRepo, blobs, server.notificationService)
	server.letterService = service.NewLetterService(
		server.letterRepo, server.userRepo, server.friendRepo,
		server.blockRepo, server.notificationService)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.RequestLogging())

	// CORS runs before middlewares that can short-circuit (e.g. limiter) so
	// browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, "signup", 3, 10*time.Minute), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, "login", 10, 5*time.Minute), s.Login)
	auth.Post("/refresh", s.Refresh)
	auth.Post("/logout", s.Logout)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Delete("/me", s.DeleteMyAccount)
	users.Get("/search", s.SearchUsers)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUserProfile)

	// Friend routes
	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	friends.Post("/requests/:userId", middleware.RateLimit(
		s.redis, "friend_request", 5, 5*time.Minute), s.SendFriendRequest)
	friends.Get("/requests", s.GetPendingRequests)
	friends.Get("/requests/sent", s.GetSentRequests)
	friends.Post("/requests/:requestId/accept", s.AcceptFriendRequest)
	friends.Post("/requests/:requestId/reject", s.RejectFriendRequest)
	friends.Get("/status/:userId", s.GetFriendshipStatus)
	friends.Delete("/:userId", s.RemoveFriend)

	// Post routes
	posts := protected.Group("/posts")
	posts.Get("/feed", s.GetFeed)
	posts.Post("/", middleware.RateLimit(
		s.redis, "create_post", 10, 5*time.Minute), s.CreatePost)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, "create_comment", 15, time.Minute), s.CreateComment)
	posts.Get("/:id/comments", s.GetComments)
	posts.Delete("/comments/:commentId", s.DeleteComment)
	posts.Post("/:id/reactions", s.ReactToPost)
	posts.Delete("/:id/reactions", s.UnreactToPost)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)

	// Collection routes
	collections := protected.Group("/collections")
	collections.Post("/", s.CreateCollection)
	collections.Get("/", s.GetCollections)
	collections.Delete("/:id", s.DeleteCollection)

	// Chat routes
	conversations := protected.Group("/conversations")
	conversations.Post("/", s.CreateConversation)
	conversations.Get("/", s.GetConversations)
	conversations.Get("/:groupId/messages", s.GetMessages)
	conversations.Post("/:groupId/messages", middleware.RateLimit(
		s.redis, "send_chat", 15, time.Minute), s.SendMessage)
	conversations.Post("/:groupId/read", s.MarkConversationRead)
	conversations.Delete("/:groupId", s.DeleteConversation)
	protected.Delete("/messages/:id", s.DeleteMessage)

	// Notification routes
	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read-all", s.MarkNotificationsRead)
	notifs.Delete("/", s.DeleteNotifications)

	// Letter routes
	letters := protected.Group("/letters")
	letters.Post("/", middleware.RateLimit(
		s.redis, "schedule_letter", 10, time.Hour), s.ScheduleLetter)
	letters.Get("/sent", s.GetSentLetters)
	letters.Get("/received", s.GetReceivedLetters)

	// Moderation routes
	moderation := protected.Group("/moderation")
	moderation.Post("/blocks/:userId", s.BlockUser)
	moderation.Get("/blocks", s.GetBlockedUsers)
	moderation.Post("/reports/users/:userId", middleware.RateLimit(
		s.redis, "report", 10, time.Hour), s.ReportUser)
	moderation.Post("/reports/posts/:postId", middleware.RateLimit(
		s.redis, "report", 10, time.Hour), s.ReportPost)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/reports/users", s.GetOpenUserReports)
	admin.Get("/reports/posts", s.GetOpenPostReports)
	admin.Post("/reports/users/:reportId/resolve", s.ResolveUserReport)
	admin.Post("/reports/users/:reportId/delete-user", s.DeleteUserAndResolveReport)
	admin.Post("/reports/posts/:reportId/resolve", s.ResolvePostReport)
	admin.Post("/reports/posts/:reportId/delete-post", s.DeletePostAndResolveReport)
	admin.Put("/users/:id/admin", s.SetUserAdmin)

	// Websocket endpoint for live notifications
	api.Get("/ws", middleware.AuthRequired, s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdminByUserID(c.Context(), userID)
		if err != nil {
			return models.RespondError(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}
		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Quill API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the websocket hub to Redis pub/sub if available.
	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start hub wiring: %v", err)
			}
		}()
	}

	// Letter delivery loop.
	interval, err := time.ParseDuration(s.config.LetterInterval)
	if err != nil || interval <= 0 {
		interval = time.Minute
	}
	go s.letterService.StartDeliveryLoop(s.shutdownCtx, interval)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down hub: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
