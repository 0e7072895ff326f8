package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"cumulus/internal/auth"
	"cumulus/internal/config"
	"cumulus/internal/events"
	"cumulus/internal/handler"
	"cumulus/internal/metrics"
	"cumulus/internal/middleware"
	"cumulus/internal/repository/postgres"
	"cumulus/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if dir := os.Getenv("LOG_DIR"); dir != "" {
		logFile, err := config.SetupLogFile(dir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Create JWT verifier
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	workspaceRepo := postgres.NewWorkspaceRepository(repoConfig)
	nodeRepo := postgres.NewNodeRepository(repoConfig)
	versionRepo := postgres.NewVersionRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Event broadcaster feeds the SSE endpoint
	broadcaster := events.NewBroadcaster()

	// Create services
	listingService := service.NewListingService(nodeRepo, logger)
	nodeService := service.NewNodeService(nodeRepo, versionRepo, txManager, listingService, broadcaster, logger)
	workspaceService := service.NewWorkspaceService(workspaceRepo, logger)

	// Create handlers
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService, logger)
	nodeHandler := handler.NewNodeHandler(nodeService, logger)
	listingHandler := handler.NewListingHandler(listingService, logger)
	eventsHandler := handler.NewEventsHandler(broadcaster, logger)
	eventsHandler.Debug = cfg.Debug

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		// Route patterns double as metric labels to keep cardinality bounded.
		mux.Handle(pattern, metrics.Instrument(pattern, fn))
	}

	// Health check and metrics
	handle("GET /health", nodeHandler.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// Workspace routes
	handle("GET /api/workspaces", workspaceHandler.ListWorkspaces)
	handle("POST /api/workspaces", workspaceHandler.CreateWorkspace)
	handle("GET /api/workspaces/{id}", workspaceHandler.GetWorkspace)
	handle("PATCH /api/workspaces/{id}", workspaceHandler.UpdateWorkspace)
	handle("DELETE /api/workspaces/{id}", workspaceHandler.DeleteWorkspace)

	// Node routes
	handle("POST /api/folders", nodeHandler.CreateFolder)
	handle("POST /api/files", nodeHandler.CreateFile)
	handle("GET /api/nodes/search", nodeHandler.SearchNodes) // Must come before {id} route
	handle("GET /api/nodes/{id}", nodeHandler.GetNode)
	handle("PATCH /api/nodes/{id}", nodeHandler.UpdateNode)
	handle("DELETE /api/nodes/{id}", nodeHandler.DeleteNode)
	handle("POST /api/nodes/{id}/copy", nodeHandler.CopyNode)
	handle("POST /api/nodes/{id}/trash", nodeHandler.TrashNode)
	handle("POST /api/nodes/{id}/restore", nodeHandler.RestoreNode)
	handle("GET /api/nodes/{id}/versions", nodeHandler.ListVersions)

	// Trash routes
	handle("GET /api/trash", nodeHandler.ListTrash)

	// Listing routes
	handle("POST /api/listings", listingHandler.OpenListing)
	handle("GET /api/listings/{id}", listingHandler.GetListing)
	handle("POST /api/listings/{id}/pages", listingHandler.LoadMore)
	handle("PUT /api/listings/{id}/sort", listingHandler.ChangeSort)
	handle("GET /api/listings/{id}/position/{nodeID}", listingHandler.GetPosition)
	handle("DELETE /api/listings/{id}", listingHandler.CloseListing)

	// Event stream
	handle("GET /api/events", eventsHandler.Stream)

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	root = middleware.Auth(jwtVerifier, logger)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
