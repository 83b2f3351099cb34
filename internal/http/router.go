package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/notekeeper/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// Apply CSRF protection if auth is enabled
	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	// Apply session middleware if enabled
	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	// Apply auth middleware if enabled
	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	} else {
		// No auth - inject default user ID
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyUserID, auth.DefaultUserID)
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeNone)
			c.Next()
		})
	}

	// Register auth routes if auth service is available
	if cfg.AuthService != nil && cfg.AuthService.IsAuthEnabled() {
		authController := auth.NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.AuthConfig)
		authController.RegisterRoutes(router)

		// API token management endpoints
		tokenController := auth.NewAPITokenController(cfg.AuthService)
		router.POST("/api/auth/token", tokenController.GenerateToken)
		router.DELETE("/api/auth/token", tokenController.RevokeToken)
	} else {
		// Single-user mode: the dashboard still polls the session endpoint.
		router.GET("/api/auth/session", func(c *gin.Context) {
			c.JSON(200, gin.H{"authenticated": true, "auth_mode": "none"})
		})
	}

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Notes API endpoints
	if cfg.NoteStore != nil {
		notesController := NewNotesController(cfg.NoteStore, cfg.Invalidator, cfg.TaskClient)
		router.GET("/api/notes", notesController.ListNotes)
		router.GET("/api/notes/recent", notesController.RecentNotes)
		router.GET("/api/notes/favourites", notesController.FavouriteNotes)
		router.GET("/api/notes/:id", notesController.GetNote)
		router.DELETE("/api/notes/:id", notesController.DeleteNote)
		router.POST("/api/notes/:id/favourite", notesController.ToggleFavourite)
		router.POST("/api/notes/:id/archive", notesController.ArchiveNote)
		router.POST("/api/notes/:id/enrich", notesController.EnrichNote)
	}

	// Tag management endpoints
	if cfg.TagStore != nil {
		tagsController := NewTagsController(cfg.TagStore, cfg.Invalidator, cfg.TaskClient)
		router.GET("/api/tags", tagsController.GetAllTags)
		router.POST("/api/tags", tagsController.CreateTag)
		router.DELETE("/api/tags/:id", tagsController.DeleteTag)
		router.GET("/api/tags/suggest", tagsController.TagSuggest)
		router.GET("/api/tags/:id/notes", tagsController.GetNotesByTag)
		router.POST("/api/notes/:id/tags", tagsController.AddTagToNote)
		router.DELETE("/api/notes/:id/tags/:tagId", tagsController.RemoveTagFromNote)
		router.POST("/api/admin/tags/cleanup", tagsController.CleanupOrphanTags)
	}

	// Import endpoints
	if cfg.Pipeline != nil {
		importController := NewImportController(cfg.Pipeline, cfg.BatchLister, cfg.ImportConfig)
		router.POST("/api/import", importController.Import)
		router.GET("/api/import/status", importController.ImportStatus)
		router.GET("/api/import/batches", importController.ListBatches)
	}

	return router
}
