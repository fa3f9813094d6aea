package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loglens/loglens/internal/domain"
)

// Store is the persistence boundary for runs and log entries.
type Store interface {
	Close() error

	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunResult(ctx context.Context, runID string, status domain.RunStatus, summary string) error
	ListRuns(ctx context.Context, page, pageSize int) ([]domain.Run, int, error)
	ClearRuns(ctx context.Context) error

	InsertEntries(ctx context.Context, runID string, entries []domain.LogEntry) error
	CountEntries(ctx context.Context, f EntryFilter) (int, error)
	QueryEntries(ctx context.Context, f EntryFilter, limit, offset int) ([]domain.LogEntry, error)
	EntriesByCorrelationIDs(ctx context.Context, runID string, keys []string, limit int) ([]domain.LogEntry, error)
	EntriesByPhases(ctx context.Context, runID string, phases []string, limit int) ([]domain.LogEntry, error)
	EntriesByResourcePrefilter(ctx context.Context, runID string, types, names []string, limit int) ([]domain.LogEntry, error)

	DistinctCorrelationIDs(ctx context.Context, runID string) ([]string, error)
	DistinctPhases(ctx context.Context, runID string) ([]string, error)
	DistinctResources(ctx context.Context, runID string) ([]ResourceKey, error)
	CountByCorrelationID(ctx context.Context, runID, key string) (int, error)
	CountByPhase(ctx context.Context, runID, phase string) (int, error)
	CountByResource(ctx context.Context, runID, resourceType, resourceName string) (int, error)
	CountMissingCorrelationID(ctx context.Context, runID string) (int, error)
	CountMissingPhase(ctx context.Context, runID string) (int, error)
	CountMissingResource(ctx context.Context, runID string) (int, error)
}

// EntryFilter selects log entries of one run. Zero values mean "no
// constraint". CorrelationID and ResourceType are substring matches,
// ResourceName is exact; Status is one of error|ok|malformed.
type EntryFilter struct {
	RunID         string
	CorrelationID string
	ResourceType  string
	ResourceName  string
	Phase         string
	Level         string
	Status        string
	Search        string
	From          *time.Time
	To            *time.Time
}

// ResourceKey is one distinct (type, name) pair observed in a run. Empty
// strings stand for NULL columns.
type ResourceKey struct {
	Type string
	Name string
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and migrates) a SQLite database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			stored_path TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'uploaded',
			summary TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS log_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			raw TEXT NOT NULL,
			payload_json TEXT NOT NULL DEFAULT '',
			timestamp DATETIME,
			level TEXT,
			phase TEXT,
			correlation_id TEXT,
			resource_type TEXT,
			resource_name TEXT,
			message TEXT NOT NULL DEFAULT '',
			is_error INTEGER NOT NULL DEFAULT 0,
			is_malformed INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_run ON log_entries(run_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_correlation ON log_entries(run_id, correlation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_resource_type ON log_entries(run_id, resource_type)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_resource_name ON log_entries(run_id, resource_name)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_phase ON log_entries(run_id, phase)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_level ON log_entries(run_id, level)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_flags ON log_entries(run_id, is_error, is_malformed)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, filename, stored_path, created_at, status, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Filename, run.StoredPath, run.CreatedAt.UTC(), run.Status, run.Summary)
	return err
}

// GetRun retrieves a run by ID. Returns nil when not found.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, filename, stored_path, created_at, status, summary FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.Filename, &run.StoredPath, &run.CreatedAt, &run.Status, &run.Summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateRunResult updates a run's status and summary.
func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, status domain.RunStatus, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ? WHERE run_id = ?`,
		status, summary, runID)
	return err
}

// ListRuns returns one page of runs ordered by creation time descending,
// plus the total run count.
func (s *SQLiteStore) ListRuns(ctx context.Context, page, pageSize int) ([]domain.Run, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, filename, stored_path, created_at, status, summary
		 FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(&run.RunID, &run.Filename, &run.StoredPath, &run.CreatedAt, &run.Status, &run.Summary); err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// ClearRuns deletes all runs; entries go with them via the cascade.
func (s *SQLiteStore) ClearRuns(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	return err
}

// InsertEntries persists one batch of entries in a single transaction.
func (s *SQLiteStore) InsertEntries(ctx context.Context, runID string, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO log_entries (run_id, raw, payload_json, timestamp, level, phase, correlation_id, resource_type, resource_name, message, is_error, is_malformed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		var ts sql.NullTime
		if e.Timestamp != nil {
			ts = sql.NullTime{Time: e.Timestamp.UTC(), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			runID, e.Raw, e.PayloadJSON, ts,
			nullString(e.Level), nullString(e.Phase), nullString(e.CorrelationID),
			nullString(e.ResourceType), nullString(e.ResourceName),
			e.Message, e.IsError, e.IsMalformed)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// buildEntryWhere translates a filter into a WHERE clause and args.
func buildEntryWhere(f EntryFilter) (string, []interface{}) {
	clauses := []string{"run_id = ?"}
	args := []interface{}{f.RunID}

	if f.CorrelationID != "" {
		clauses = append(clauses, "correlation_id LIKE ?")
		args = append(args, "%"+f.CorrelationID+"%")
	}
	if f.ResourceType != "" {
		clauses = append(clauses, "resource_type LIKE ?")
		args = append(args, "%"+f.ResourceType+"%")
	}
	if f.ResourceName != "" {
		clauses = append(clauses, "resource_name = ?")
		args = append(args, f.ResourceName)
	}
	if f.Phase != "" {
		clauses = append(clauses, "phase = ?")
		args = append(args, f.Phase)
	}
	if f.Level != "" {
		clauses = append(clauses, "level = ?")
		args = append(args, f.Level)
	}
	switch f.Status {
	case "error":
		clauses = append(clauses, "is_error = 1")
	case "malformed":
		clauses = append(clauses, "is_malformed = 1")
	case "ok":
		clauses = append(clauses, "is_error = 0", "is_malformed = 0")
	}
	if f.From != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, f.To.UTC())
	}
	if f.Search != "" {
		clauses = append(clauses, "(message LIKE ? OR payload_json LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	return strings.Join(clauses, " AND "), args
}

// CountEntries counts entries matching the filter.
func (s *SQLiteStore) CountEntries(ctx context.Context, f EntryFilter) (int, error) {
	where, args := buildEntryWhere(f)
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM log_entries WHERE "+where, args...).Scan(&total)
	return total, err
}

// QueryEntries returns entries matching the filter ordered by
// (timestamp ASC with NULLs first, id ASC). limit <= 0 means no limit.
func (s *SQLiteStore) QueryEntries(ctx context.Context, f EntryFilter, limit, offset int) ([]domain.LogEntry, error) {
	where, args := buildEntryWhere(f)
	query := "SELECT " + entryColumns + " FROM log_entries WHERE " + where + " ORDER BY timestamp ASC, id ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	return s.queryEntryRows(ctx, query, args...)
}

// EntriesByCorrelationIDs fetches entries of a run whose correlation id is
// in the key set, up to limit.
func (s *SQLiteStore) EntriesByCorrelationIDs(ctx context.Context, runID string, keys []string, limit int) ([]domain.LogEntry, error) {
	return s.entriesByColumnIn(ctx, runID, "correlation_id", keys, limit)
}

// EntriesByPhases fetches entries of a run whose phase is in the key set.
func (s *SQLiteStore) EntriesByPhases(ctx context.Context, runID string, phases []string, limit int) ([]domain.LogEntry, error) {
	return s.entriesByColumnIn(ctx, runID, "phase", phases, limit)
}

func (s *SQLiteStore) entriesByColumnIn(ctx context.Context, runID, column string, keys []string, limit int) ([]domain.LogEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(keys))
	args := []interface{}{runID}
	for i, k := range keys {
		placeholders[i] = "?"
		args = append(args, k)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM log_entries WHERE run_id = ? AND %s IN (%s) ORDER BY timestamp ASC, id ASC",
		entryColumns, column, strings.Join(placeholders, ","))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryEntryRows(ctx, query, args...)
}

// EntriesByResourcePrefilter fetches entries matching any of the types OR
// any of the names. This is a coarse prefilter on indexed equality
// lookups; callers refine to exact (type, name) pairs in memory.
func (s *SQLiteStore) EntriesByResourcePrefilter(ctx context.Context, runID string, types, names []string, limit int) ([]domain.LogEntry, error) {
	if len(types) == 0 && len(names) == 0 {
		return nil, nil
	}
	var or []string
	args := []interface{}{runID}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		or = append(or, fmt.Sprintf("resource_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(names) > 0 {
		placeholders := make([]string, len(names))
		for i, n := range names {
			placeholders[i] = "?"
			args = append(args, n)
		}
		or = append(or, fmt.Sprintf("resource_name IN (%s)", strings.Join(placeholders, ",")))
	}
	query := fmt.Sprintf(
		"SELECT %s FROM log_entries WHERE run_id = ? AND (%s) ORDER BY timestamp ASC, id ASC",
		entryColumns, strings.Join(or, " OR "))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryEntryRows(ctx, query, args...)
}

// DistinctCorrelationIDs lists the distinct non-null correlation ids of a run.
func (s *SQLiteStore) DistinctCorrelationIDs(ctx context.Context, runID string) ([]string, error) {
	return s.distinctColumn(ctx, runID, "correlation_id")
}

// DistinctPhases lists the distinct non-null phases of a run.
func (s *SQLiteStore) DistinctPhases(ctx context.Context, runID string) ([]string, error) {
	return s.distinctColumn(ctx, runID, "phase")
}

func (s *SQLiteStore) distinctColumn(ctx context.Context, runID, column string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM log_entries WHERE run_id = ? AND %s IS NOT NULL", column, column)
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DistinctResources lists the distinct (type, name) pairs of a run where
// at least one component is present.
func (s *SQLiteStore) DistinctResources(ctx context.Context, runID string) ([]ResourceKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT resource_type, resource_name FROM log_entries
		 WHERE run_id = ? AND (resource_type IS NOT NULL OR resource_name IS NOT NULL)`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResourceKey
	for rows.Next() {
		var t, n sql.NullString
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out = append(out, ResourceKey{Type: t.String, Name: n.String})
	}
	return out, rows.Err()
}

// CountByCorrelationID counts entries of a run with the given correlation id.
func (s *SQLiteStore) CountByCorrelationID(ctx context.Context, runID, key string) (int, error) {
	return s.countWhere(ctx, "run_id = ? AND correlation_id = ?", runID, key)
}

// CountByPhase counts entries of a run with the given phase.
func (s *SQLiteStore) CountByPhase(ctx context.Context, runID, phase string) (int, error) {
	return s.countWhere(ctx, "run_id = ? AND phase = ?", runID, phase)
}

// CountByResource counts entries matching an exact (type, name) pair;
// empty components match NULL.
func (s *SQLiteStore) CountByResource(ctx context.Context, runID, resourceType, resourceName string) (int, error) {
	clauses := []string{"run_id = ?"}
	args := []interface{}{runID}
	if resourceType == "" {
		clauses = append(clauses, "resource_type IS NULL")
	} else {
		clauses = append(clauses, "resource_type = ?")
		args = append(args, resourceType)
	}
	if resourceName == "" {
		clauses = append(clauses, "resource_name IS NULL")
	} else {
		clauses = append(clauses, "resource_name = ?")
		args = append(args, resourceName)
	}
	return s.countWhere(ctx, strings.Join(clauses, " AND "), args...)
}

// CountMissingCorrelationID counts entries lacking a correlation id.
func (s *SQLiteStore) CountMissingCorrelationID(ctx context.Context, runID string) (int, error) {
	return s.countWhere(ctx, "run_id = ? AND correlation_id IS NULL", runID)
}

// CountMissingPhase counts entries lacking a phase.
func (s *SQLiteStore) CountMissingPhase(ctx context.Context, runID string) (int, error) {
	return s.countWhere(ctx, "run_id = ? AND phase IS NULL", runID)
}

// CountMissingResource counts entries lacking both resource components.
func (s *SQLiteStore) CountMissingResource(ctx context.Context, runID string) (int, error) {
	return s.countWhere(ctx, "run_id = ? AND resource_type IS NULL AND resource_name IS NULL", runID)
}

func (s *SQLiteStore) countWhere(ctx context.Context, where string, args ...interface{}) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM log_entries WHERE "+where, args...).Scan(&total)
	return total, err
}

const entryColumns = "id, run_id, raw, payload_json, timestamp, level, phase, correlation_id, resource_type, resource_name, message, is_error, is_malformed"

func (s *SQLiteStore) queryEntryRows(ctx context.Context, query string, args ...interface{}) ([]domain.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var ts sql.NullTime
		var level, phase, corr, rtype, rname sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Raw, &e.PayloadJSON, &ts,
			&level, &phase, &corr, &rtype, &rname,
			&e.Message, &e.IsError, &e.IsMalformed); err != nil {
			return nil, err
		}
		if ts.Valid {
			t := ts.Time.UTC()
			e.Timestamp = &t
		}
		e.Level = level.String
		e.Phase = phase.String
		e.CorrelationID = corr.String
		e.ResourceType = rtype.String
		e.ResourceName = rname.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
