package repository

import (
	"context"
	"fmt"
	"strings"

	"lexdraft-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IPCSectionRepository handles database operations for the IPC section index.
type IPCSectionRepository struct {
	db *pgxpool.Pool
}

// NewIPCSectionRepository creates a new IPC section repository.
func NewIPCSectionRepository(db *pgxpool.Pool) *IPCSectionRepository {
	return &IPCSectionRepository{db: db}
}

// IPCSectionRow is a raw index hit. SectionNumber and Title are pointers
// because the corpus may carry incomplete metadata; the retrieval stage
// substitutes sentinels before the row leaves the service layer.
type IPCSectionRow struct {
	ID            uuid.UUID
	SectionNumber *string
	Title         *string
	Description   string
	Distance      float64
}

// formatVector formats an embedding vector as a string for pgx.
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SearchNearest returns up to limit sections ranked by ascending vector
// distance to the query embedding.
func (r *IPCSectionRepository) SearchNearest(
	ctx context.Context,
	embedding []float64,
	limit int,
) ([]IPCSectionRow, error) {
	if len(embedding) != 768 {
		return nil, fmt.Errorf("embedding must be 768 dimensions, got %d", len(embedding))
	}

	vectorStr := formatVector(embedding)

	query := `
		SELECT
			id,
			section_number,
			title,
			description,
			embedding <=> $1::vector AS distance
		FROM ipc_sections
		ORDER BY
			embedding <=> $1::vector
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, vectorStr, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ipc sections: %w", err)
	}
	defer rows.Close()

	var sections []IPCSectionRow
	for rows.Next() {
		var section IPCSectionRow
		err := rows.Scan(
			&section.ID,
			&section.SectionNumber,
			&section.Title,
			&section.Description,
			&section.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ipc section: %w", err)
		}
		sections = append(sections, section)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ipc sections: %w", err)
	}

	return sections, nil
}

// Insert stores one section with its embedding. Used by the index builder.
func (r *IPCSectionRepository) Insert(
	ctx context.Context,
	section models.IPCSection,
	embedding []float64,
) error {
	if len(embedding) != 768 {
		return fmt.Errorf("embedding must be 768 dimensions, got %d", len(embedding))
	}

	query := `
		INSERT INTO ipc_sections (id, section_number, title, description, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)`

	_, err := r.db.Exec(ctx, query,
		uuid.New(),
		section.SectionNumber,
		section.Title,
		section.Description,
		formatVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ipc section: %w", err)
	}
	return nil
}

// Count returns the number of indexed sections.
func (r *IPCSectionRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM ipc_sections").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ipc sections: %w", err)
	}
	return count, nil
}

// EnsureSchema creates the ipc_sections table and its index. Used by the
// index builder; the serving path assumes the table exists.
func (r *IPCSectionRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ipc_sections (
			id UUID PRIMARY KEY,
			section_number TEXT,
			title TEXT,
			description TEXT NOT NULL,
			embedding vector(768) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ipc_sections_embedding_idx
			ON ipc_sections USING ivfflat (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Truncate clears the index before a rebuild.
func (r *IPCSectionRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "TRUNCATE ipc_sections"); err != nil {
		return fmt.Errorf("failed to truncate ipc sections: %w", err)
	}
	return nil
}
