// Command build-ipc-index populates the ipc_sections vector index from a
// corpus file of Indian Penal Code sections. The serving pipeline treats
// the index as pre-existing; run this once (or after corpus updates).
//
// The corpus is a JSON array of {section_number, title, description}
// objects, read from a local file (-corpus) or fetched from the configured
// resource store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"lexdraft-backend/config"
	"lexdraft-backend/gemini"
	"lexdraft-backend/models"
	"lexdraft-backend/repository"
	"lexdraft-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const (
	batchSize    = 50
	batchPause   = time.Second
	documentTask = "RETRIEVAL_DOCUMENT"
)

func main() {
	corpusPath := flag.String("corpus", "", "local corpus JSON file (default: fetch from storage)")
	rebuild := flag.Bool("rebuild", false, "truncate the index before loading")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()

	repo := repository.NewIPCSectionRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	if *rebuild {
		if err := repo.Truncate(ctx); err != nil {
			log.Fatalf("Failed to truncate index: %v", err)
		}
		log.Println("Existing index truncated")
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	sections, err := loadCorpus(ctx, store, cfg.Corpus.Resource, *corpusPath)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	log.Printf("Loaded %d sections from corpus", len(sections))

	// A locally supplied corpus becomes the shared copy other environments
	// fetch from the store.
	if *corpusPath != "" {
		if err := uploadCorpus(ctx, store, cfg.Corpus.Resource, *corpusPath); err != nil {
			log.Printf("Warning: Failed to upload corpus to storage: %v", err)
		} else {
			log.Printf("Corpus stored as %s", cfg.Corpus.Resource)
		}
	}

	client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey,
		gemini.WithEmbeddingModel(cfg.Gemini.EmbeddingModel),
	)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini: %v", err)
	}
	defer client.Close()

	inserted := 0
	for start := 0; start < len(sections); start += batchSize {
		end := start + batchSize
		if end > len(sections) {
			end = len(sections)
		}
		batch := sections[start:end]

		texts := make([]string, 0, len(batch))
		for _, s := range batch {
			texts = append(texts, embeddingText(s))
		}

		embeddings, err := client.EmbedBatch(ctx, texts, documentTask)
		if err != nil {
			log.Fatalf("Failed to embed batch %d-%d: %v", start, end, err)
		}

		for i, s := range batch {
			if err := repo.Insert(ctx, s, embeddings[i]); err != nil {
				log.Fatalf("Failed to insert section %s: %v", s.SectionNumber, err)
			}
			inserted++
		}

		log.Printf("Indexed %d/%d sections", inserted, len(sections))
		if end < len(sections) {
			time.Sleep(batchPause)
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count index: %v", err)
	}
	log.Printf("Done. Index holds %d sections.", count)
}

// embeddingText is the text embedded per section: number and title anchor
// the provision, the description carries the semantics.
func embeddingText(s models.IPCSection) string {
	return "Section " + s.SectionNumber + ": " + s.Title + "\n" + s.Description
}

func loadCorpus(ctx context.Context, store storage.Store, resource, localPath string) ([]models.IPCSection, error) {
	var data []byte
	var err error

	if localPath != "" {
		data, err = os.ReadFile(localPath)
		if err != nil {
			return nil, err
		}
	} else {
		body, err := store.Fetch(ctx, resource)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		if err != nil {
			return nil, err
		}
	}

	var sections []models.IPCSection
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func uploadCorpus(ctx context.Context, store storage.Store, resource, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return store.Store(ctx, resource, f)
}
