// Package index provides vector storage and nearest-neighbor search over
// embedded documentation chunks.
//
// Two backends implement Store: Vectorize (Cloudflare's managed index,
// addressed over REST) and SQLite (brute-force cosine similarity in a local
// database, used for development and tests). Both are last-write-wins at
// the record level; neither performs its own locking beyond what the
// backend provides.
package index

import "context"

// Store is the vector index consumed by the ingestion and retrieval
// pipelines.
type Store interface {
	// Upsert writes records, replacing any existing record with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Query returns the topK records most similar to vector, highest
	// score first, with metadata attached.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// Record is one stored vector with its chunk metadata.
type Record struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// Metadata carries the documentation-chunk fields alongside each vector.
// Text is truncated by the ingestion pipeline before it gets here.
type Metadata struct {
	Text     string `json:"text"`
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	API      string `json:"api"`
	Summary  string `json:"summary"`
}

// Match is one query result. Higher scores are more similar.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}
