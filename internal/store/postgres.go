package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Satisfied by both
// *pgxpool.Pool and pgxmock pools.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a Postgres database.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse database url")
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS catalogs (
	id           TEXT PRIMARY KEY,
	source_label TEXT NOT NULL,
	specs        JSONB NOT NULL,
	raw_json     TEXT NOT NULL,
	raw_text     TEXT NOT NULL,
	summary      TEXT,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_pages (
	catalog_id   TEXT NOT NULL REFERENCES catalogs(id) ON DELETE CASCADE,
	number       INTEGER NOT NULL,
	media_type   TEXT NOT NULL,
	data         BYTEA NOT NULL,
	PRIMARY KEY (catalog_id, number)
);

CREATE INDEX IF NOT EXISTS idx_catalogs_created_at ON catalogs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "store: migrate postgres schema")
	}
	return nil
}

func (s *PostgresStore) CreateCatalog(ctx context.Context, rec *model.CatalogRecord) error {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()

	specs, err := json.Marshal(rec.Specs)
	if err != nil {
		return eris.Wrap(err, "store: marshal specs")
	}

	// Catalog row and page rows land together or not at all.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO catalogs (id, source_label, specs, raw_json, raw_text, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.SourceLabel, string(specs), rec.RawJSON, rec.RawText, rec.Summary, rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: insert catalog")
	}

	for _, p := range rec.Pages {
		_, err = tx.Exec(ctx,
			`INSERT INTO catalog_pages (catalog_id, number, media_type, data) VALUES ($1, $2, $3, $4)`,
			rec.ID, p.Number, p.MediaType, p.Data)
		if err != nil {
			return eris.Wrapf(err, "store: insert page %d", p.Number)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: commit")
	}

	zap.L().Info("catalog created",
		zap.String("id", rec.ID),
		zap.String("source", rec.SourceLabel),
		zap.Int("records", len(rec.Specs)))

	return nil
}

func scanPgCatalog(row pgx.Row) (*model.CatalogRecord, error) {
	var rec model.CatalogRecord
	var specs []byte
	if err := row.Scan(&rec.ID, &rec.SourceLabel, &specs, &rec.RawJSON, &rec.RawText, &rec.Summary, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(specs, &rec.Specs); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal specs")
	}
	return &rec, nil
}

func (s *PostgresStore) ListCatalogs(ctx context.Context) ([]model.CatalogRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_label, specs, raw_json, raw_text, summary, created_at
		 FROM catalogs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list catalogs")
	}
	defer rows.Close()

	recs := make([]model.CatalogRecord, 0)
	for rows.Next() {
		rec, err := scanPgCatalog(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan catalog")
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate catalogs")
	}
	return recs, nil
}

func (s *PostgresStore) GetCatalog(ctx context.Context, id string) (*model.CatalogRecord, error) {
	rec, err := scanPgCatalog(s.pool.QueryRow(ctx,
		`SELECT id, source_label, specs, raw_json, raw_text, summary, created_at
		 FROM catalogs WHERE id = $1`, id))
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "store: get catalog")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT number, media_type, data FROM catalog_pages WHERE catalog_id = $1 ORDER BY number`, id)
	if err != nil {
		return nil, eris.Wrap(err, "store: get pages")
	}
	defer rows.Close()

	for rows.Next() {
		var p model.PagePreview
		if err := rows.Scan(&p.Number, &p.MediaType, &p.Data); err != nil {
			return nil, eris.Wrap(err, "store: scan page")
		}
		rec.Pages = append(rec.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate pages")
	}

	return rec, nil
}

func (s *PostgresStore) UpdateCatalog(ctx context.Context, rec *model.CatalogRecord) error {
	specs, err := json.Marshal(rec.Specs)
	if err != nil {
		return eris.Wrap(err, "store: marshal specs")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE catalogs SET source_label = $1, specs = $2, raw_json = $3, raw_text = $4, summary = $5
		 WHERE id = $6`,
		rec.SourceLabel, string(specs), rec.RawJSON, rec.RawText, rec.Summary, rec.ID)
	if err != nil {
		return eris.Wrap(err, "store: update catalog")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateSummary(ctx context.Context, id, summary string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE catalogs SET summary = $1 WHERE id = $2`, summary, id)
	if err != nil {
		return eris.Wrap(err, "store: update summary")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteCatalog(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM catalogs WHERE id = $1`, id)
	if err != nil {
		return eris.Wrap(err, "store: delete catalog")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
