package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// ChunkRepository is the durable copy of the indexed corpus.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// SaveChunks writes the batch in one transaction; either every chunk is
// stored or none is.
func (r *ChunkRepository) SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (id, document_id, position, text, source, file_type, file_path, length)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE
SET document_id = EXCLUDED.document_id, position = EXCLUDED.position, text = EXCLUDED.text,
	source = EXCLUDED.source, file_type = EXCLUDED.file_type, file_path = EXCLUDED.file_path,
	length = EXCLUDED.length
`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			c.ID, documentID, i, c.Text, c.Metadata.Source, c.Metadata.FileType, c.Metadata.FilePath, c.Length,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, text, source, file_type, file_path, length
FROM chunks
ORDER BY document_id, position
`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return scanChunks(rows)
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, text, source, file_type, file_path, length
FROM chunks
WHERE document_id = $1
ORDER BY position
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document chunks: %w", err)
	}
	return scanChunks(rows)
}

func (r *ChunkRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	defer rows.Close()

	out := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(
			&c.ID,
			&c.Metadata.DocumentID,
			&c.Text,
			&c.Metadata.Source,
			&c.Metadata.FileType,
			&c.Metadata.FilePath,
			&c.Length,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}
