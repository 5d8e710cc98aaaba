package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"lexdraft-backend/config"
	"lexdraft-backend/gemini"
	"lexdraft-backend/handlers"
	"lexdraft-backend/render"
	"lexdraft-backend/repository"
	"lexdraft-backend/service"
	"lexdraft-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize Postgres:", err)
	}
	defer db.Close()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("Storage initialized")

	geminiClient, err := gemini.NewClient(context.Background(), cfg.Gemini.APIKey,
		gemini.WithGenerationModel(cfg.Gemini.GenerationModel),
		gemini.WithEmbeddingModel(cfg.Gemini.EmbeddingModel),
	)
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}
	defer geminiClient.Close()
	log.Println("Gemini client initialized")

	sectionRepo := repository.NewIPCSectionRepository(db)

	// The font, the model client, and the pool are the process-wide
	// singletons; everything else is request-scoped.
	font := resolveFont(cfg, store)
	renderer := render.New(font)

	languageService := service.NewLanguageService(
		service.LanguageWithGenerator(geminiClient),
		service.LanguageWithTranscriber(geminiClient),
	)
	draftService := service.NewDraftService(
		service.DraftWithGenerator(geminiClient),
		service.DraftWithEmbedder(geminiClient),
		service.DraftWithSectionSearcher(sectionRepo),
	)
	complaintService := service.NewComplaintService(
		service.WithLanguageService(languageService),
		service.WithDraftService(draftService),
		service.WithRenderer(renderer),
	)

	complaintHandler := handlers.NewComplaintHandler(complaintService, renderer)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		api.POST("/complaints", complaintHandler.ProcessComplaint)
		api.POST("/complaints/voice", complaintHandler.ProcessVoiceComplaint)
		api.POST("/complaints/export", complaintHandler.ExportComplaint)
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initPostgres(cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
		log.Println("This may be normal if extension is already installed or requires superuser privileges")
	} else {
		log.Println("pgvector extension enabled")
	}

	log.Println("Postgres connection established with pgvector support")
	return pool, nil
}

// resolveFont locates the TrueType font for PDF output: local file first,
// then the resource store, then the built-in base font with degraded
// non-Latin support.
func resolveFont(cfg *config.Config, store storage.Store) render.Font {
	path := cfg.Renderer.FontPath
	if _, err := os.Stat(path); err == nil {
		return render.ResolveFont(path)
	}

	if store != nil && cfg.Renderer.FontResource != "" {
		if err := fetchFont(store, cfg.Renderer.FontResource, path); err != nil {
			log.Printf("Warning: Failed to fetch font from storage: %v", err)
		}
	}
	return render.ResolveFont(path)
}

func fetchFont(store storage.Store, resource, path string) error {
	body, err := store.Fetch(context.Background(), resource)
	if err != nil {
		return err
	}
	defer body.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, body)
	return err
}
