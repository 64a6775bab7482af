package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/bartekus/vibe/internal/runner"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    skill_id TEXT NOT NULL,
    repo_root TEXT NOT NULL,
    status TEXT NOT NULL,
    dry_run INTEGER NOT NULL,
    success INTEGER NOT NULL,
    report TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`

const createIndexSessionsCreatedAt = `
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
`

// jsonReport stores a RunReport as JSON text; NULL scans to nil.
type jsonReport struct {
	Data *runner.RunReport
}

func (j *jsonReport) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into report", value)
		}
		b = []byte(str)
	}
	return json.Unmarshal(b, &j.Data)
}

func (j jsonReport) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type dbSession struct {
	ID        string     `db:"id"`
	SkillID   string     `db:"skill_id"`
	RepoRoot  string     `db:"repo_root"`
	Status    string     `db:"status"`
	DryRun    bool       `db:"dry_run"`
	Success   bool       `db:"success"`
	Report    jsonReport `db:"report"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

func fromSession(s *Session) dbSession {
	return dbSession{
		ID:        s.ID,
		SkillID:   s.SkillID,
		RepoRoot:  s.RepoRoot,
		Status:    string(s.Status),
		DryRun:    s.DryRun,
		Success:   s.Success,
		Report:    jsonReport{Data: s.Report},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (d *dbSession) toSession() *Session {
	return &Session{
		ID:        d.ID,
		SkillID:   d.SkillID,
		RepoRoot:  d.RepoRoot,
		Status:    Status(d.Status),
		DryRun:    d.DryRun,
		Success:   d.Success,
		Report:    d.Report.Data,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens or creates the database at dbPath and ensures the schema.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}
	for _, stmt := range []string{createSessionsTable, createIndexSessionsCreatedAt} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to create schema")
		}
	}
	return &SQLiteStore{db: db}, nil
}

func configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.GetContext(ctx, &journalMode, "PRAGMA journal_mode"); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled. Current mode: %s", journalMode)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectSession = `SELECT id, skill_id, repo_root, status, dry_run, success, report,
	created_at, updated_at FROM sessions`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var row dbSession
	if err := s.db.GetContext(ctx, &row, selectSession+" WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "%s", id)
		}
		return nil, errors.Wrap(err, "failed to load session")
	}
	return row.toSession(), nil
}

func (s *SQLiteStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id is required")
	}
	query := `
		INSERT INTO sessions (
			id, skill_id, repo_root, status, dry_run, success, report, created_at, updated_at
		) VALUES (
			:id, :skill_id, :repo_root, :status, :dry_run, :success, :report, :created_at, :updated_at
		)
		ON CONFLICT(id) DO UPDATE SET
			skill_id = excluded.skill_id,
			repo_root = excluded.repo_root,
			status = excluded.status,
			dry_run = excluded.dry_run,
			success = excluded.success,
			report = excluded.report,
			updated_at = excluded.updated_at`
	if _, err := s.db.NamedExecContext(ctx, query, fromSession(sess)); err != nil {
		return errors.Wrap(err, "failed to save session")
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Session, error) {
	var rows []dbSession
	if err := s.db.SelectContext(ctx, &rows, selectSession+" ORDER BY created_at DESC, id ASC"); err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	out := make([]*Session, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toSession())
	}
	return out, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
