package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/catalog-cli/internal/model"
)

// SQLiteStore implements Store on a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open sqlite %q", path)
	}

	// Single writer; WAL keeps readers unblocked during pipeline saves.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "store: %s", p)
		}
	}

	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS catalogs (
	id           TEXT PRIMARY KEY,
	source_label TEXT NOT NULL,
	specs        TEXT NOT NULL,
	raw_json     TEXT NOT NULL,
	raw_text     TEXT NOT NULL,
	summary      TEXT,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_pages (
	catalog_id   TEXT NOT NULL REFERENCES catalogs(id) ON DELETE CASCADE,
	number       INTEGER NOT NULL,
	media_type   TEXT NOT NULL,
	data         BLOB NOT NULL,
	PRIMARY KEY (catalog_id, number)
);

CREATE INDEX IF NOT EXISTS idx_catalogs_created_at ON catalogs(created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "store: migrate sqlite schema")
	}
	return nil
}

func (s *SQLiteStore) CreateCatalog(ctx context.Context, rec *model.CatalogRecord) error {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()

	specs, err := json.Marshal(rec.Specs)
	if err != nil {
		return eris.Wrap(err, "store: marshal specs")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO catalogs (id, source_label, specs, raw_json, raw_text, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceLabel, string(specs), rec.RawJSON, rec.RawText, rec.Summary, rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: insert catalog")
	}

	for _, p := range rec.Pages {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO catalog_pages (catalog_id, number, media_type, data) VALUES (?, ?, ?, ?)`,
			rec.ID, p.Number, p.MediaType, p.Data)
		if err != nil {
			return eris.Wrapf(err, "store: insert page %d", p.Number)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit")
	}

	zap.L().Info("catalog created",
		zap.String("id", rec.ID),
		zap.String("source", rec.SourceLabel),
		zap.Int("records", len(rec.Specs)),
		zap.Int("pages", len(rec.Pages)))

	return nil
}

// scannable abstracts *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanCatalog(row scannable) (*model.CatalogRecord, error) {
	var rec model.CatalogRecord
	var specs string
	if err := row.Scan(&rec.ID, &rec.SourceLabel, &specs, &rec.RawJSON, &rec.RawText, &rec.Summary, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specs), &rec.Specs); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal specs")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListCatalogs(ctx context.Context) ([]model.CatalogRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_label, specs, raw_json, raw_text, summary, created_at
		 FROM catalogs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list catalogs")
	}
	defer rows.Close()

	recs := make([]model.CatalogRecord, 0)
	for rows.Next() {
		rec, err := scanCatalog(rows)
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

func (s *SQLiteStore) GetCatalog(ctx context.Context, id string) (*model.CatalogRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_label, specs, raw_json, raw_text, summary, created_at
		 FROM catalogs WHERE id = ?`, id)

	rec, err := scanCatalog(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "store: get catalog")
	}

	pageRows, err := s.db.QueryContext(ctx,
		`SELECT number, media_type, data FROM catalog_pages WHERE catalog_id = ? ORDER BY number`, id)
	if err != nil {
		return nil, eris.Wrap(err, "store: get pages")
	}
	defer pageRows.Close()

	for pageRows.Next() {
		var p model.PagePreview
		if err := pageRows.Scan(&p.Number, &p.MediaType, &p.Data); err != nil {
			return nil, eris.Wrap(err, "store: scan page")
		}
		rec.Pages = append(rec.Pages, p)
	}
	if err := pageRows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate pages")
	}

	return rec, nil
}

func (s *SQLiteStore) UpdateCatalog(ctx context.Context, rec *model.CatalogRecord) error {
	specs, err := json.Marshal(rec.Specs)
	if err != nil {
		return eris.Wrap(err, "store: marshal specs")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE catalogs SET source_label = ?, specs = ?, raw_json = ?, raw_text = ?, summary = ?
		 WHERE id = ?`,
		rec.SourceLabel, string(specs), rec.RawJSON, rec.RawText, rec.Summary, rec.ID)
	if err != nil {
		return eris.Wrap(err, "store: update catalog")
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) UpdateSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE catalogs SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return eris.Wrap(err, "store: update summary")
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) DeleteCatalog(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalogs WHERE id = ?`, id)
	if err != nil {
		return eris.Wrap(err, "store: delete catalog")
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// checkRowsAffected maps zero affected rows to ErrNotFound.
func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
