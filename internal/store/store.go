// Package store persists catalog records. Two backends are provided: SQLite
// for the default single-user install and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-cli/internal/model"
)

// ErrNotFound is returned when a catalog id does not exist. Check with
// errors.Is.
var ErrNotFound = eris.New("catalog not found")

// Store defines catalog persistence operations.
type Store interface {
	// Migrate creates or updates the schema. Safe to call on every start.
	Migrate(ctx context.Context) error

	// CreateCatalog persists a new record, assigning its ID and CreatedAt.
	CreateCatalog(ctx context.Context, rec *model.CatalogRecord) error

	// ListCatalogs returns all records newest first. Page images are not
	// loaded; fetch a single record to get them.
	ListCatalogs(ctx context.Context) ([]model.CatalogRecord, error)

	// GetCatalog returns one record with its page images.
	GetCatalog(ctx context.Context, id string) (*model.CatalogRecord, error)

	// UpdateCatalog replaces the record's mutable content (specs, raw
	// payloads, summary). ID and CreatedAt are never changed.
	UpdateCatalog(ctx context.Context, rec *model.CatalogRecord) error

	// UpdateSummary sets just the summary of a record.
	UpdateSummary(ctx context.Context, id, summary string) error

	// DeleteCatalog removes a record and its pages.
	DeleteCatalog(ctx context.Context, id string) error

	Close() error
}
