package runlog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no run with the requested ID exists.
var ErrNotFound = errors.New("run not found")

const dbFileName = "runs.db"

// Store persists runs in a SQLite database under the state directory.
// Report documents are stored as zstd-compressed JSON blobs.
type Store struct {
	conn   *sql.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *slog.Logger
	dbPath string
}

// ListOptions filters and bounds ListRuns results.
type ListOptions struct {
	Extension string
	Mode      Mode
	Limit     int
}

// OpenStore opens or creates the run database at <stateDir>/runs.db.
func OpenStore(stateDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, dbFileName)
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-16000", // 16MB cache
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create report encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("create report decoder: %w", err)
	}

	store := &Store{
		conn:   conn,
		enc:    enc,
		dec:    dec,
		logger: logger,
		dbPath: dbPath,
	}

	if !dbExists {
		logger.Info("creating run database", "path", dbPath)
		if err := store.initializeSchema(); err != nil {
			store.Close()
			return nil, fmt.Errorf("initialize run schema: %w", err)
		}
	}

	return store, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			extension TEXT NOT NULL,
			mode TEXT NOT NULL,
			fingerprint TEXT,
			candidates INTEGER NOT NULL DEFAULT 0,
			renames INTEGER NOT NULL DEFAULT 0,
			conflicts INTEGER NOT NULL DEFAULT 0,
			files_changed INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			error TEXT,
			report BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_extension ON runs(extension);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Close releases the database connection and the report codecs.
func (s *Store) Close() error {
	var firstErr error
	if s.enc != nil {
		if err := s.enc.Close(); err != nil {
			firstErr = err
		}
		s.enc = nil
	}
	if s.dec != nil {
		s.dec.Close()
		s.dec = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.conn = nil
	}
	return firstErr
}

// RecordRun inserts a finished run. A non-nil report is serialized to
// JSON, compressed and stored alongside the run row.
func (s *Store) RecordRun(run *Run, report any) error {
	var blob []byte
	if report != nil {
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		blob = s.enc.EncodeAll(data, nil)
	}

	query := `
		INSERT INTO runs (id, extension, mode, fingerprint, candidates, renames, conflicts, files_changed, started_at, finished_at, error, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.conn.Exec(query,
		run.ID,
		run.Extension,
		string(run.Mode),
		nullString(run.Fingerprint),
		run.Candidates,
		run.Renames,
		run.Conflicts,
		run.FilesChanged,
		run.StartedAt.Format(time.RFC3339),
		nullTime(run.FinishedAt),
		nullString(run.Error),
		blob,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	s.logger.Debug("recorded run", "runId", run.ID, "extension", run.Extension, "mode", run.Mode)
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	query := `
		SELECT id, extension, mode, fingerprint, candidates, renames, conflicts, files_changed, started_at, finished_at, error
		FROM runs WHERE id = ?
	`
	run, err := scanRun(s.conn.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// GetReport returns the decompressed JSON report of a run. Runs recorded
// without a report yield nil.
func (s *Store) GetReport(id string) ([]byte, error) {
	var blob []byte
	err := s.conn.QueryRow("SELECT report FROM runs WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(blob) == 0 {
		return nil, nil
	}

	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress report: %w", err)
	}
	return data, nil
}

// ListRuns retrieves runs newest first, filtered by opts.
func (s *Store) ListRuns(opts ListOptions) ([]*Run, error) {
	var conditions []string
	var args []interface{}

	if opts.Extension != "" {
		conditions = append(conditions, "extension = ?")
		args = append(args, opts.Extension)
	}
	if opts.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, string(opts.Mode))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, extension, mode, fingerprint, candidates, renames, conflicts, files_changed, started_at, finished_at, error
		FROM runs %s
		ORDER BY started_at DESC, id
		LIMIT ?
	`, whereClause)
	args = append(args, limit)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// CleanupOldRuns removes finished runs older than the given retention.
func (s *Store) CleanupOldRuns(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	result, err := s.conn.Exec(`
		DELETE FROM runs
		WHERE finished_at IS NOT NULL
		AND finished_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old runs: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var mode string
	var fingerprint, finishedAt, errMsg sql.NullString
	var startedAt string

	err := row.Scan(
		&run.ID,
		&run.Extension,
		&mode,
		&fingerprint,
		&run.Candidates,
		&run.Renames,
		&run.Conflicts,
		&run.FilesChanged,
		&startedAt,
		&finishedAt,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}

	run.Mode = Mode(mode)
	run.Fingerprint = fingerprint.String
	run.Error = errMsg.String

	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		run.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
			run.FinishedAt = &t
		}
	}

	return &run, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}
