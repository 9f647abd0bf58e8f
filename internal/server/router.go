// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pocketledger/internal/clock"
	_ "pocketledger/internal/docs" // Import swagger docs
	"pocketledger/internal/handlers"
	"pocketledger/internal/middleware"
	"pocketledger/internal/services"
	"pocketledger/internal/session"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Users    services.UserServicer
	Books    services.BookServicer
	Ledger   services.LedgerServicer
	Audit    services.AuditServicer
	Sessions *session.Registry
	Tokens   *middleware.Tokens
	Clock    clock.Clock

	MaxAvatarBytes int64

	// BlobDir is served at /blobs when avatars are stored on local disk.
	BlobDir string
}

// NewRouter registers every route on a new gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Clock == nil {
		d.Clock = clock.SystemClock{}
	}

	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens, d.Sessions, d.MaxAvatarBytes)
	bookHandler := handlers.NewBookHandler(d.Books, d.Audit)
	entryHandler := handlers.NewEntryHandler(d.Ledger, d.Audit)
	reportHandler := handlers.NewReportHandler(d.Books, d.Ledger, d.Clock)
	streamHandler := handlers.NewStreamHandler(d.Sessions)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": d.Sessions.Len()})
	})

	if d.BlobDir != "" {
		router.Static("/blobs", d.BlobDir)
	}

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(d.Tokens.AuthMiddleware())

	protected.POST("/auth/logout", authHandler.Logout)

	// User profile
	protected.GET("/profile", authHandler.GetProfile)
	protected.PUT("/profile", authHandler.UpdateProfile)
	protected.POST("/profile/avatar", authHandler.UploadAvatar)

	// Book routes
	books := protected.Group("/books")
	books.POST("", bookHandler.CreateBook)
	books.GET("", bookHandler.GetBooks)
	books.GET("/stream", streamHandler.StreamBooks)
	books.GET("/:id", bookHandler.GetBook)
	books.PUT("/:id", bookHandler.UpdateBook)
	books.DELETE("/:id", bookHandler.DeleteBook)
	books.POST("/:id/categories", bookHandler.AddCategory)
	books.PUT("/:id/categories/:categoryId", bookHandler.UpdateCategory)
	books.DELETE("/:id/categories/:categoryId", bookHandler.RemoveCategory)
	books.GET("/:id/entries", entryHandler.GetBookEntries)
	books.GET("/:id/entries/stream", streamHandler.StreamEntries)
	books.GET("/:id/report", reportHandler.GetReport)

	// Entry routes
	entries := protected.Group("/entries")
	entries.POST("", entryHandler.CreateEntry)
	entries.DELETE("/:id", entryHandler.DeleteEntry)

	return router
}

// cors allows browser clients from any origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
