package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"cumulus/internal/config"
	"cumulus/internal/events"
	"cumulus/internal/repository/postgres"
	"cumulus/internal/seed"
	"cumulus/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed fixture data")
	clearData := flag.Bool("clear-data", false, "Clear all nodes and versions (keep schema)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *clearData {
		log.Printf("🧹 Clearing data only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	// Run schema to ensure tables exist
	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	// Exit early if schema-only mode
	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	// Exit early if clear-data mode (just clear and exit)
	if *clearData {
		log.Println("🧹 Clearing existing nodes and versions...")
		if err := clearWorkspaceData(ctx, pool, tables, cfg.TestWorkspaceID); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("✅ Data cleared successfully")
		return
	}

	// Ensure the demo workspace exists before seeding into it
	fixtures, err := seed.Load()
	if err != nil {
		log.Fatalf("Failed to load fixtures: %v", err)
	}
	if err := ensureTestWorkspace(ctx, pool, tables, cfg.TestWorkspaceID, cfg.TestUserID, fixtures.Workspace.Name); err != nil {
		log.Fatalf("Failed to ensure workspace: %v", err)
	}

	// Create repositories and services; seeding goes through the service
	// layer so fixtures get real validation and version history.
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	nodeRepo := postgres.NewNodeRepository(repoConfig)
	versionRepo := postgres.NewVersionRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)
	listingService := service.NewListingService(nodeRepo, logger)
	nodeService := service.NewNodeService(nodeRepo, versionRepo, txManager, listingService, events.NewBroadcaster(), logger)

	// Clear existing data so seeding is idempotent
	log.Println("⚠️  Clearing existing nodes and versions...")
	if err := clearWorkspaceData(ctx, pool, tables, cfg.TestWorkspaceID); err != nil {
		log.Printf("Warning: Could not clear data: %v", err)
	}

	log.Println("📝 Seeding fixture tree...")
	if err := seed.Apply(ctx, fixtures, nodeService, cfg.TestWorkspaceID, logger); err != nil {
		log.Fatalf("Failed to seed fixtures: %v", err)
	}

	log.Println("🎉 Seeding complete!")
}

// ensureTestWorkspace creates the demo workspace if it doesn't exist
func ensureTestWorkspace(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, workspaceID, userID, name string) error {
	query := `
		INSERT INTO ` + tables.Workspaces + ` (id, owner_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := pool.Exec(ctx, query, workspaceID, userID, name, time.Now())
	return err
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	// Enable UUID extension
	_, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"")
	if err != nil {
		return err
	}

	// Create workspaces table
	createWorkspaces := `
		CREATE TABLE IF NOT EXISTS ` + tables.Workspaces + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			owner_id UUID NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createWorkspaces); err != nil {
		return err
	}

	// Create nodes table
	createNodes := `
		CREATE TABLE IF NOT EXISTS ` + tables.Nodes + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			workspace_id UUID NOT NULL REFERENCES ` + tables.Workspaces + `(id) ON DELETE CASCADE,
			parent_id UUID REFERENCES ` + tables.Nodes + `(id) ON DELETE CASCADE,
			kind TEXT NOT NULL CHECK (kind IN ('root', 'folder', 'file')),
			name TEXT NOT NULL,
			size BIGINT,
			mime_type TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			trashed_at TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createNodes); err != nil {
		return err
	}

	// Create node_versions table
	createVersions := `
		CREATE TABLE IF NOT EXISTS ` + tables.NodeVersions + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			node_id UUID NOT NULL REFERENCES ` + tables.Nodes + `(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			size BIGINT NOT NULL,
			hash TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(node_id, number)
		)
	`
	if _, err := pool.Exec(ctx, createVersions); err != nil {
		return err
	}

	// Create indexes. Sibling-name uniqueness only applies to live nodes,
	// and root-level rows need their own index because parent_id is NULL.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `nodes_sibling_unique ON ` + tables.Nodes + `(workspace_id, parent_id, name, kind) WHERE trashed_at IS NULL AND parent_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `nodes_root_unique ON ` + tables.Nodes + `(workspace_id, name, kind) WHERE trashed_at IS NULL AND parent_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `nodes_workspace_parent ON ` + tables.Nodes + `(workspace_id, parent_id) WHERE trashed_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `nodes_trash ON ` + tables.Nodes + `(workspace_id, trashed_at) WHERE trashed_at IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `node_versions_node ON ` + tables.NodeVersions + `(node_id, number DESC)`,
	}

	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.NodeVersions,
		tables.Nodes,
		tables.Workspaces,
	}

	for _, table := range tableNames {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}

// clearWorkspaceData removes all nodes (and, via cascade, versions) for a
// workspace
func clearWorkspaceData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, workspaceID string) error {
	_, err := pool.Exec(ctx, "DELETE FROM "+tables.Nodes+" WHERE workspace_id = $1", workspaceID)
	return err
}
