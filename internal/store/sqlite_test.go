package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "catalogs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRecord() *model.CatalogRecord {
	return &model.CatalogRecord{
		SourceLabel: "lineup-2026.pdf",
		Specs: []model.CarSpecification{
			{
				ID:           "r1",
				Manufacturer: model.StrPtr("Honda"),
				ModelName:    model.StrPtr("Fit"),
				Grade:        model.StrPtr("e:HEV HOME"),
				Price:        model.FloatPtr(2186800),
				FuelEconomy:  model.StrPtr("28.6 km/L"),
				Options:      []string{"sunroof"},
			},
		},
		RawJSON: `[{"manufacturer":"Honda"}]`,
		RawText: "FIT catalog text",
		Pages: []model.PagePreview{
			{Number: 1, MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0x01}},
			{Number: 2, MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0x02}},
		},
	}
}

func TestSQLite_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, s.CreateCatalog(ctx, rec))
	assert.NotEmpty(t, rec.ID, "create assigns the id")
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.GetCatalog(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "lineup-2026.pdf", got.SourceLabel)
	assert.Equal(t, rec.RawJSON, got.RawJSON)
	assert.Equal(t, rec.RawText, got.RawText)
	assert.Nil(t, got.Summary)

	require.Len(t, got.Specs, 1)
	assert.Equal(t, "e:HEV HOME", *got.Specs[0].Grade)
	assert.Nil(t, got.Specs[0].EngineType, "nil spec fields survive the round trip")
	assert.Equal(t, []string{"sunroof"}, got.Specs[0].Options)

	require.Len(t, got.Pages, 2)
	assert.Equal(t, []byte{0xff, 0xd8, 0x02}, got.Pages[1].Data)
}

func TestSQLite_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		rec := sampleRecord()
		require.NoError(t, s.CreateCatalog(ctx, rec))
		ids = append(ids, rec.ID)
		time.Sleep(5 * time.Millisecond) // distinct created_at
	}

	recs, err := s.ListCatalogs(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, ids[2], recs[0].ID)
	assert.Equal(t, ids[0], recs[2].ID)
	assert.Empty(t, recs[0].Pages, "list omits page blobs")

	// Listing is read-only.
	again, err := s.ListCatalogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs, again)
}

func TestSQLite_ListEmpty(t *testing.T) {
	s := newTestStore(t)
	recs, err := s.ListCatalogs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLite_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCatalog(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, s.CreateCatalog(ctx, rec))
	created := rec.CreatedAt

	rec.Specs[0].Price = model.FloatPtr(2250000)
	rec.Summary = model.StrPtr("A compact hybrid lineup.")
	require.NoError(t, s.UpdateCatalog(ctx, rec))

	got, err := s.GetCatalog(ctx, rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2250000, *got.Specs[0].Price, 0.001)
	assert.Equal(t, "A compact hybrid lineup.", *got.Summary)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second, "created_at never changes")
}

func TestSQLite_UpdateNotFound(t *testing.T) {
	s := newTestStore(t)
	rec := sampleRecord()
	rec.ID = "missing"
	assert.ErrorIs(t, s.UpdateCatalog(context.Background(), rec), ErrNotFound)
}

func TestSQLite_UpdateSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, s.CreateCatalog(ctx, rec))

	require.NoError(t, s.UpdateSummary(ctx, rec.ID, "Five grades from 1.7M to 2.6M yen."))
	got, err := s.GetCatalog(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Five grades from 1.7M to 2.6M yen.", *got.Summary)

	assert.ErrorIs(t, s.UpdateSummary(ctx, "missing", "x"), ErrNotFound)
}

func TestSQLite_DeleteCascadesPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, s.CreateCatalog(ctx, rec))
	require.NoError(t, s.DeleteCatalog(ctx, rec.ID))

	_, err := s.GetCatalog(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM catalog_pages`).Scan(&count))
	assert.Zero(t, count, "pages are deleted with the catalog")

	assert.True(t, errors.Is(s.DeleteCatalog(ctx, rec.ID), ErrNotFound))
}
