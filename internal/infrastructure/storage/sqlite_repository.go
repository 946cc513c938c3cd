package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver

	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/ports"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS scripts (
	run_id       TEXT PRIMARY KEY,
	video_idea   TEXT NOT NULL,
	script       TEXT NOT NULL,
	hook         TEXT NOT NULL,
	bridge       TEXT NOT NULL,
	nugget_title TEXT NOT NULL,
	wta          TEXT NOT NULL,
	source_count INTEGER NOT NULL,
	created_at   TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_scripts_created_at ON scripts (created_at)`,
}

const defaultListLimit = 20

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository archives completed scripts in a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ScriptRepository = (*SQLiteRepository)(nil)

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := NewSQLiteRepository(db)
	if err := repo.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLiteRepository wires an already opened sql.DB.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func (r *SQLiteRepository) migrate() error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate scripts table: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save upserts the record keyed by run id.
func (r *SQLiteRepository) Save(ctx context.Context, record domain.ScriptRecord) error {
	if r.db == nil {
		return nil
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.sb.Insert("scripts").
		Columns("run_id", "video_idea", "script", "hook", "bridge", "nugget_title", "wta", "source_count", "created_at").
		Values(record.RunID, record.VideoIdea, record.Script, record.Hook, record.Bridge,
			record.NuggetTitle, record.WTA, record.SourceCount, record.CreatedAt.UTC().Format(timeLayout)).
		Suffix(`ON CONFLICT (run_id) DO UPDATE SET
			script = excluded.script,
			hook = excluded.hook,
			bridge = excluded.bridge,
			nugget_title = excluded.nugget_title,
			wta = excluded.wta`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert script: %w", err)
	}
	return nil
}

// List returns the newest records first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]domain.ScriptRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	query, args, err := r.sb.
		Select("run_id", "video_idea", "script", "hook", "bridge", "nugget_title", "wta", "source_count", "created_at").
		From("scripts").
		OrderBy("created_at DESC", "run_id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scripts: %w", err)
	}

	var result []domain.ScriptRecord
	for rows.Next() {
		var (
			rec     domain.ScriptRecord
			created string
		)
		if err := rows.Scan(&rec.RunID, &rec.VideoIdea, &rec.Script, &rec.Hook, &rec.Bridge,
			&rec.NuggetTitle, &rec.WTA, &rec.SourceCount, &created); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan script: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		result = append(result, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}
