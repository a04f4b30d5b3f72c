package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository.
// The dbPath can be a file path or ":memory:" for in-memory database.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// migrate runs database migrations.
func (r *SQLiteRepository) migrate() error {
	var currentVersion int
	err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		// Table doesn't exist, run initial schema
		if _, err := r.db.Exec(Schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		_, err = r.db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	for v := currentVersion + 1; v <= SchemaVersion; v++ {
		migration, ok := Migrations[v]
		if !ok {
			continue
		}
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", v, err)
		}
		if _, err := r.db.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", v, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// =============================================================================
// Sites
// =============================================================================

func (r *SQLiteRepository) CreateSite(ctx context.Context, s *Site) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sites (id, name, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Config, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *SQLiteRepository) GetSite(ctx context.Context, id string) (*Site, error) {
	s := &Site{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, config, created_at, updated_at
		FROM sites WHERE id = ?`, id).Scan(
		&s.ID, &s.Name, &s.Config, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) GetSiteByName(ctx context.Context, name string) (*Site, error) {
	s := &Site{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, config, created_at, updated_at
		FROM sites WHERE name = ?`, name).Scan(
		&s.ID, &s.Name, &s.Config, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListSites(ctx context.Context) ([]*Site, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, config, created_at, updated_at
		FROM sites ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		s := &Site{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Config, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

func (r *SQLiteRepository) UpdateSiteConfig(ctx context.Context, id, config string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sites SET config = ?, updated_at = ? WHERE id = ?`,
		config, time.Now(), id)
	return err
}

func (r *SQLiteRepository) DeleteSite(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sites WHERE id = ?", id)
	return err
}

// =============================================================================
// Executions
// =============================================================================

func (r *SQLiteRepository) CreateExecution(ctx context.Context, e *Execution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	e.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO executions (id, site_id, status, config, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.SiteID, e.Status, e.Config, e.CreatedAt)
	return err
}

func (r *SQLiteRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	e := &Execution{}
	var result, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, site_id, status, config, result, error, created_at, started_at, finished_at
		FROM executions WHERE id = ?`, id).Scan(
		&e.ID, &e.SiteID, &e.Status, &e.Config, &result, &errMsg,
		&e.CreatedAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.Result = result.String
	e.Error = errMsg.String
	if startedAt.Valid {
		e.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		e.FinishedAt = &finishedAt.Time
	}
	return e, nil
}

func (r *SQLiteRepository) ListExecutions(ctx context.Context, siteID string) ([]*Execution, error) {
	query := `
		SELECT id, site_id, status, config, result, error, created_at, started_at, finished_at
		FROM executions`
	var args []interface{}
	if siteID != "" {
		query += " WHERE site_id = ?"
		args = append(args, siteID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e := &Execution{}
		var result, errMsg sql.NullString
		var startedAt, finishedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.SiteID, &e.Status, &e.Config, &result, &errMsg,
			&e.CreatedAt, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		e.Result = result.String
		e.Error = errMsg.String
		if startedAt.Valid {
			e.StartedAt = &startedAt.Time
		}
		if finishedAt.Valid {
			e.FinishedAt = &finishedAt.Time
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

func (r *SQLiteRepository) MarkExecutionRunning(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE executions SET status = ?, started_at = ? WHERE id = ?`,
		StatusRunning, time.Now(), id)
	return err
}

func (r *SQLiteRepository) CompleteExecution(ctx context.Context, id, result string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE executions SET status = ?, result = ?, finished_at = ? WHERE id = ?`,
		StatusCompleted, result, time.Now(), id)
	return err
}

func (r *SQLiteRepository) FailExecution(ctx context.Context, id, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE executions SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, errMsg, time.Now(), id)
	return err
}

// Ensure SQLiteRepository implements Repository
var _ Repository = (*SQLiteRepository)(nil)
