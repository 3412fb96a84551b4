package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deskbot/app/config"
	"deskbot/app/util/fault"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultTopK = 5

// Service stores per-owner document chunks with embeddings and answers
// similarity queries scoped to one owner.
type Service struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)

	connString := fmt.Sprintf("postgres://%s:%s@%s/%s",
		cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Database)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fault.Storage().Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(appCtx, poolConfig)
	if err != nil {
		return nil, fault.Storage().Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(appCtx, 10*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fault.Storage().Errorf("failed to ping database: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithToken(cfg.OpenAI.Token),
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
	)
	if err != nil {
		return nil, fault.Collaborator().Errorf("failed to create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fault.Collaborator().Errorf("failed to create embedder: %w", err)
	}

	return &Service{
		pool:     pool,
		embedder: embedder,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS doc_chunks (
			id UUID PRIMARY KEY,
			owner TEXT NOT NULL,
			doc_name TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector
		)`,
		`CREATE INDEX IF NOT EXISTS doc_chunks_owner_idx ON doc_chunks (owner, doc_name)`,
	}

	for _, statement := range statements {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fault.Storage().Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Index chunks the text, embeds every chunk and upserts them for the
// owner. Re-ingesting the same document replaces its chunks.
func (s *Service) Index(ctx context.Context, owner, docName, text string) error {
	chunks := chunkText(text)
	if len(chunks) == 0 {
		return fault.Validation().Errorf("document %q has no extractable text", docName)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fault.Collaborator().Errorf("failed to embed document: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fault.Collaborator().Errorf("embedding count mismatch: %d != %d", len(vectors), len(chunks))
	}

	if err := s.Remove(ctx, owner, docName); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		batch.Queue(
			`INSERT INTO doc_chunks (id, owner, doc_name, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), owner, docName, i, chunk, pgvector.NewVector(vectors[i]),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := results.Exec(); err != nil {
			return fault.Storage().Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	slog.Info("Indexed document", "owner", owner, "doc_name", docName, "chunks", len(chunks))

	return nil
}

func (s *Service) Remove(ctx context.Context, owner, docName string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM doc_chunks WHERE owner = $1 AND doc_name = $2`,
		owner, docName,
	)
	if err != nil {
		return fault.Storage().Errorf("failed to remove document chunks: %w", err)
	}

	return nil
}

// Query returns the owner's most similar chunks for the query text.
func (s *Service) Query(ctx context.Context, owner, query string) ([]string, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fault.Collaborator().Errorf("failed to embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content FROM doc_chunks
		 WHERE owner = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		owner, pgvector.NewVector(vector), defaultTopK,
	)
	if err != nil {
		return nil, fault.Storage().Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var passages []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fault.Storage().Errorf("failed to scan chunk: %w", err)
		}
		passages = append(passages, content)
	}

	return passages, rows.Err()
}

func (s *Service) Shutdown() error {
	s.pool.Close()

	return nil
}
