package http

import (
	"github.com/mrlokans/notekeeper/internal/auth"
	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/config"
	"github.com/mrlokans/notekeeper/internal/database"
	"github.com/mrlokans/notekeeper/internal/importer"
	"github.com/mrlokans/notekeeper/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces the long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database  *database.Database
	NoteStore NoteStore
	TagStore  TagStore

	// Import pipeline and batch history
	Pipeline     *importer.Pipeline
	BatchLister  BatchLister
	ImportConfig config.Import

	// Collection cache invalidation
	Invalidator *cache.Invalidator

	// Task queue client (optional)
	TaskClient *tasks.Client

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	AuthConfig     config.Auth
	CSRFSecret     []byte
	SecureCookies  bool

	// Application info
	Version string
}
