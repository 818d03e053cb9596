package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for inferences, counts, and
// data records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "argos.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	// Counts reference inferences with ON DELETE CASCADE.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Inferences ---

const inferenceColumns = `id, machine_id, status, started_at, ended_at, species, batch_id, notes,
	operator_id, target_count, target_biomass_kg, end_reason, final_count, final_biomass_kg,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInference(row rowScanner) (Inference, error) {
	var inf Inference
	err := row.Scan(
		&inf.ID, &inf.MachineID, &inf.Status, &inf.StartedAt, &inf.EndedAt,
		&inf.Species, &inf.BatchID, &inf.Notes, &inf.OperatorID,
		&inf.TargetCount, &inf.TargetBiomassKg, &inf.EndReason,
		&inf.FinalCount, &inf.FinalBiomassKg, &inf.CreatedAt, &inf.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Inference{}, ErrNotFound
	}
	if err != nil {
		return Inference{}, err
	}
	return inf, nil
}

// CreateInference persists a new inference record. The caller assigns the id,
// status, and server-side timestamps.
func (s *Store) CreateInference(inf Inference) error {
	_, err := s.db.Exec(`
		INSERT INTO inferences (`+inferenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inf.ID, inf.MachineID, inf.Status, inf.StartedAt, inf.EndedAt,
		inf.Species, inf.BatchID, inf.Notes, inf.OperatorID,
		inf.TargetCount, inf.TargetBiomassKg, inf.EndReason,
		inf.FinalCount, inf.FinalBiomassKg, inf.CreatedAt, inf.UpdatedAt,
	)
	return err
}

// GetInference returns the inference with the given id, or ErrNotFound.
func (s *Store) GetInference(id string) (Inference, error) {
	row := s.db.QueryRow(`SELECT `+inferenceColumns+` FROM inferences WHERE id = ?`, id)
	return scanInference(row)
}

// EndInference transitions an inference from running to completed, recording
// ended_at and the optional completion fields. The status check and the
// update share one transaction so the transition happens at most once.
// Returns ErrNotFound if the inference does not exist and
// ErrInferenceCompleted if it already completed.
func (s *Store) EndInference(id, endedAt, updatedAt string, reason *string, finalCount *int64, finalBiomassKg *float64) (Inference, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Inference{}, fmt.Errorf("beginning end transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM inferences WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return Inference{}, ErrNotFound
	}
	if err != nil {
		return Inference{}, err
	}
	if status == StatusCompleted {
		return Inference{}, ErrInferenceCompleted
	}

	if _, err := tx.Exec(`
		UPDATE inferences
		SET status = ?, ended_at = ?, end_reason = ?, final_count = ?,
			final_biomass_kg = ?, updated_at = ?
		WHERE id = ?`,
		StatusCompleted, endedAt, reason, finalCount, finalBiomassKg, updatedAt, id,
	); err != nil {
		return Inference{}, err
	}

	inf, err := scanInference(tx.QueryRow(`SELECT `+inferenceColumns+` FROM inferences WHERE id = ?`, id))
	if err != nil {
		return Inference{}, err
	}

	if err := tx.Commit(); err != nil {
		return Inference{}, fmt.Errorf("committing end: %w", err)
	}
	return inf, nil
}

// ListInferences returns inferences matching the filter, ordered by
// started_at descending.
func (s *Store) ListInferences(f InferenceFilter) ([]Inference, error) {
	var conditions []string
	var params []any
	if f.MachineID != "" {
		conditions = append(conditions, "machine_id = ?")
		params = append(params, f.MachineID)
	}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		params = append(params, f.Status)
	}

	query := `SELECT ` + inferenceColumns + ` FROM inferences`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, f.Limit)
	}

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Inference
	for rows.Next() {
		inf, err := scanInference(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, inf)
	}
	return results, rows.Err()
}

// LatestInference returns the most recent inference by started_at, optionally
// restricted to one machine. Returns ErrNotFound when none exists.
func (s *Store) LatestInference(machineID string) (Inference, error) {
	query := `SELECT ` + inferenceColumns + ` FROM inferences`
	var params []any
	if machineID != "" {
		query += " WHERE machine_id = ?"
		params = append(params, machineID)
	}
	query += " ORDER BY started_at DESC LIMIT 1"
	return scanInference(s.db.QueryRow(query, params...))
}

// --- Counts ---

const countColumns = `id, inference_id, machine_id, counted_at, fish_count, biomass_kg,
	avg_weight_g, confidence, frame_count, notes, created_at`

func scanCount(row rowScanner) (Count, error) {
	var c Count
	err := row.Scan(
		&c.ID, &c.InferenceID, &c.MachineID, &c.CountedAt, &c.FishCount,
		&c.BiomassKg, &c.AvgWeightG, &c.Confidence, &c.FrameCount,
		&c.Notes, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return Count{}, ErrNotFound
	}
	if err != nil {
		return Count{}, err
	}
	return c, nil
}

// CreateCount inserts a measurement for a running inference. The parent
// status check and the insert share one transaction: no count can slip in
// after the parent completes. Returns ErrNotFound when the parent inference
// is missing and ErrInferenceCompleted when it already ended.
func (s *Store) CreateCount(c Count) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning count transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM inferences WHERE id = ?`, c.InferenceID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status == StatusCompleted {
		return ErrInferenceCompleted
	}

	if _, err := tx.Exec(`
		INSERT INTO counts (`+countColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.InferenceID, c.MachineID, c.CountedAt, c.FishCount,
		c.BiomassKg, c.AvgWeightG, c.Confidence, c.FrameCount,
		c.Notes, c.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetCount returns the count with the given id, or ErrNotFound.
func (s *Store) GetCount(id string) (Count, error) {
	row := s.db.QueryRow(`SELECT `+countColumns+` FROM counts WHERE id = ?`, id)
	return scanCount(row)
}

// ListCounts returns counts matching the filter, ordered by counted_at
// descending.
func (s *Store) ListCounts(f CountFilter) ([]Count, error) {
	var conditions []string
	var params []any
	if f.InferenceID != "" {
		conditions = append(conditions, "inference_id = ?")
		params = append(params, f.InferenceID)
	}
	if f.MachineID != "" {
		conditions = append(conditions, "machine_id = ?")
		params = append(params, f.MachineID)
	}
	if f.From != "" {
		conditions = append(conditions, "counted_at >= ?")
		params = append(params, f.From)
	}
	if f.To != "" {
		conditions = append(conditions, "counted_at <= ?")
		params = append(params, f.To)
	}

	query := `SELECT ` + countColumns + ` FROM counts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY counted_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, f.Limit)
	}

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Count
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// CountsForInference returns all counts for one inference ordered by
// counted_at ascending (chronological, not insertion order).
func (s *Store) CountsForInference(inferenceID string) ([]Count, error) {
	rows, err := s.db.Query(`
		SELECT `+countColumns+` FROM counts
		WHERE inference_id = ? ORDER BY counted_at ASC`, inferenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Count
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// --- Data records ---

// InsertDataRecord stores a new data record and returns it with the
// auto-assigned id.
func (s *Store) InsertDataRecord(value, date string, status *string, createdAt string) (DataRecord, error) {
	res, err := s.db.Exec(`
		INSERT INTO data_records (value, date, status, created_at)
		VALUES (?, ?, ?, ?)`,
		value, date, status, createdAt,
	)
	if err != nil {
		return DataRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return DataRecord{}, err
	}
	return DataRecord{ID: id, Value: value, Date: date, Status: status, CreatedAt: createdAt}, nil
}

// ListDataRecords returns up to limit records with id greater than afterID,
// ordered by id ascending. Pass afterID = 0 for the first page.
func (s *Store) ListDataRecords(afterID int64, limit int) ([]DataRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, value, date, status, created_at FROM data_records
		WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DataRecord
	for rows.Next() {
		var d DataRecord
		if err := rows.Scan(&d.ID, &d.Value, &d.Date, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
