package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/notekeeper/internal/ai"
	"github.com/mrlokans/notekeeper/internal/auth"
	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/config"
	"github.com/mrlokans/notekeeper/internal/database"
	"github.com/mrlokans/notekeeper/internal/database/notes"
	"github.com/mrlokans/notekeeper/internal/database/tags"
	"github.com/mrlokans/notekeeper/internal/extract"
	http_controllers "github.com/mrlokans/notekeeper/internal/http"
	"github.com/mrlokans/notekeeper/internal/importer"
	"github.com/mrlokans/notekeeper/internal/ocr"
	"github.com/mrlokans/notekeeper/internal/scheduler"
	"github.com/mrlokans/notekeeper/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown: wait for interrupt signal, then give in-flight
	// requests the configured timeout to finish.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Notekeeper v%s", version)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	noteRepo := notes.NewRepository(db.DB)
	tagRepo := tags.NewRepository(db.DB)

	// Collection cache invalidation shared by the pipeline, the enricher
	// and the HTTP layer.
	invalidator := cache.NewInvalidator()

	// Gemini-backed OCR and enrichment. Without an API key images are
	// rejected at extraction and notes are created without summaries.
	var ocrClient extract.OCRClient
	var enricher *ai.Enricher
	if cfg.Gemini.APIKey != "" {
		ocrClient = ocr.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model,
			ocr.WithBaseURL(cfg.Gemini.BaseURL),
			ocr.WithTimeout(cfg.Gemini.Timeout),
		)

		aiClient := ai.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model,
			ai.WithBaseURL(cfg.Gemini.BaseURL),
			ai.WithTimeout(cfg.Gemini.Timeout),
		)
		enricher = ai.NewEnricher(aiClient, noteRepo, tagRepo)
		enricher.RegisterTagsUpdateCallback(func() {
			invalidator.Invalidate(cache.TopicTags)
		})
	} else {
		log.Printf("WARNING: Gemini API key is not set. OCR and AI enrichment are disabled. Set 'GEMINI_API_KEY' to enable.")
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Register task queues
		taskClient.Register(
			tasks.NewCleanupOrphanTagsQueue(tagRepo),
			tasks.NewCleanupOldBatchesQueue(noteRepo),
		)
		if enricher != nil {
			taskClient.Register(
				tasks.NewEnrichNoteQueue(enricher),
				tasks.NewEnrichPendingNotesQueue(noteRepo, enricher),
			)
		}

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Periodic sweep re-enriching notes that are still missing summaries
	var enrichScheduler *scheduler.EnrichSyncScheduler
	if cfg.EnrichSync.Enabled && taskClient != nil && enricher != nil {
		enrichScheduler = scheduler.NewEnrichSyncScheduler(taskClient, scheduler.Config{
			Enabled:  cfg.EnrichSync.Enabled,
			Schedule: cfg.EnrichSync.Schedule,
		})
		if err := enrichScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start enrichment scheduler: %v", err)
		}
	}

	// Initialize authentication if enabled
	var authService *auth.Service
	var authMiddleware *auth.Middleware
	var sessionManager *auth.SessionManager
	var csrfSecret []byte
	var checkSession importer.SessionChecker

	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")

		// Create auth service
		authService = auth.NewService(db.DB, cfg.Auth)

		// Get underlying SQL DB for session store
		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB for sessions: %v", err)
		}

		// Initialize session manager
		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize session manager: %v", err)
		}

		// Create auth middleware
		authMiddleware = auth.NewMiddleware(authService, sessionManager, cfg.Auth)

		// The import pipeline re-checks session validity before each file
		checkSession = sessionManager.IsSessionValid

		// Generate or use configured CSRF secret
		if cfg.Auth.SessionSecret != "" {
			csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
			if err != nil {
				// Not hex, use as raw bytes
				csrfSecret = []byte(cfg.Auth.SessionSecret)
			}
		} else {
			// Generate a secret
			secret, err := auth.GenerateSessionSecret()
			if err != nil {
				log.Fatalf("Failed to generate CSRF secret: %v", err)
			}
			csrfSecret, _ = hex.DecodeString(secret)
			log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
		}

		// Check if setup is needed
		hasUsers, _ := authService.HasUsers()
		if !hasUsers {
			log.Printf("No users found. POST to /api/auth/setup to create an administrator account.")
		}
	} else {
		log.Printf("Authentication mode: none (no authentication required)")
	}

	// The import pipeline shared by the upload endpoint and status polling
	pipeline := importer.NewPipeline(
		extract.New(ocrClient),
		importer.NewMaterializer(noteRepo, enricherOrNil(enricher)),
		noteRepo,
		importer.NewStatusTracker(),
		invalidator,
		checkSession,
	)

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		NoteStore:      noteRepo,
		TagStore:       tagRepo,
		Pipeline:       pipeline,
		BatchLister:    noteRepo,
		ImportConfig:   cfg.Import,
		Invalidator:    invalidator,
		TaskClient:     taskClient,
		AuthService:    authService,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		AuthConfig:     cfg.Auth,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Version:        version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if enrichScheduler != nil {
			enrichScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// enricherOrNil avoids handing the materializer a typed nil interface.
func enricherOrNil(enricher *ai.Enricher) importer.Enricher {
	if enricher == nil {
		return nil
	}
	return enricher
}
