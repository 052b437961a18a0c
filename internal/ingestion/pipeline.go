// Package ingestion turns raw documentation chunks into searchable vectors.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/clickpost/ragbot/internal/index"
)

// DefaultBatchSize is the number of chunks embedded and upserted together.
const DefaultBatchSize = 10

// maxMetadataText caps the chunk text copied into vector metadata.
const maxMetadataText = 2000

// Embedder generates an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is one unit of documentation text submitted for indexing.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata describes the API operation a chunk documents.
type ChunkMetadata struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	API      string `json:"api"`
	Summary  string `json:"summary"`
}

// Validate reports whether the chunk carries the required text.
func (c Chunk) Validate() error {
	if c.Text == "" {
		return fmt.Errorf("chunk text is required")
	}
	return nil
}

// Pipeline batches chunks, embeds them, and upserts the resulting vectors.
type Pipeline struct {
	embedder  Embedder
	store     index.Store
	batchSize int
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. If batchSize <= 0, DefaultBatchSize is used.
func NewPipeline(embedder Embedder, store index.Store, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
}

// Ingest embeds and upserts chunks in sequential batches. Chunks within a
// batch are embedded concurrently; each batch is upserted before the next
// one starts, so a mid-run failure leaves all prior batches committed.
// Vector ids are "chunk-<n>" where n is the chunk's position in the full
// input, independent of batch boundaries.
//
// Returns the number of records committed. On failure the same count is
// also carried by the returned *UpstreamError.
func (p *Pipeline) Ingest(ctx context.Context, chunks []Chunk) (int, error) {
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	p.logger.Info("starting ingestion", "chunks", len(chunks))

	total := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		batch := chunks[start:end]

		records := make([]index.Record, len(batch))
		g, gCtx := errgroup.WithContext(ctx)
		for i, chunk := range batch {
			g.Go(func() error {
				vec, err := p.embedder.Embed(gCtx, chunk.Text)
				if err != nil {
					return fmt.Errorf("embedding chunk %d: %w", start+i, err)
				}
				records[i] = index.Record{
					ID:     fmt.Sprintf("chunk-%d", start+i),
					Values: vec,
					Metadata: index.Metadata{
						Text:     truncate(chunk.Text, maxMetadataText),
						Endpoint: chunk.Metadata.Endpoint,
						Method:   chunk.Metadata.Method,
						Path:     chunk.Metadata.Path,
						API:      chunk.Metadata.API,
						Summary:  chunk.Metadata.Summary,
					},
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, &UpstreamError{Op: "embed", Inserted: total, Err: err}
		}

		if err := p.store.Upsert(ctx, records); err != nil {
			return total, &UpstreamError{Op: "upsert", Inserted: total, Err: err}
		}
		total += len(records)

		p.logger.Info("batch inserted",
			"batch", start/p.batchSize+1,
			"size", len(records),
			"total", total,
		)
	}

	return total, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
