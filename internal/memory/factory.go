package memory

import (
	"context"
	"log"
	"strings"
)

// NewStore opens PostgreSQL when databaseURL is set and falls back to an
// in-process store otherwise.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		log.Printf("memory: DATABASE_URL not set, using in-memory store")
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
