package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"arkline/internal/config"
)

// Store manages record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the records database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "records.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// CreateRecord inserts a record together with its ordered step set, all
// initialized to pending. Step specs must carry unique orders and known
// types; the set is never reordered or extended afterwards.
func (s *Store) CreateRecord(ctx context.Context, title, metadataJSON string, specs []StepSpec) (*Record, error) {
	if len(specs) == 0 {
		return nil, errors.New("record requires at least one step")
	}
	orders := make(map[int]struct{}, len(specs))
	types := make(map[StepType]struct{}, len(specs))
	for _, spec := range specs {
		if _, ok := stepTypeSet[spec.Type]; !ok {
			return nil, fmt.Errorf("unknown step type %q", spec.Type)
		}
		if spec.Mode != ModeAutomatic && spec.Mode != ModeManual {
			return nil, fmt.Errorf("unknown step mode %q", spec.Mode)
		}
		if _, dup := orders[spec.Order]; dup {
			return nil, fmt.Errorf("duplicate step order %d", spec.Order)
		}
		if _, dup := types[spec.Type]; dup {
			return nil, fmt.Errorf("duplicate step type %q", spec.Type)
		}
		orders[spec.Order] = struct{}{}
		types[spec.Type] = struct{}{}
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO records (title, noid, identifier, metadata_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		title,
		nil,
		nil,
		nullableString(metadataJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, spec := range specs {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO steps (record_id, step_type, step_order, mode, human_validation, status, log, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			spec.Type,
			spec.Order,
			spec.Mode,
			boolToInt(spec.HumanValidation),
			StatusPending,
			nil,
			timestamp,
		); err != nil {
			return nil, fmt.Errorf("insert step %s: %w", spec.Type, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return s.GetRecord(ctx, id)
}

// GetRecord fetches a record by identifier. Returns nil when absent.
func (s *Store) GetRecord(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// ListRecords returns all records ordered by creation time.
func (s *Store) ListRecords(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	return items, rows.Err()
}

// UpdateRecord persists changes to a record's mutable fields.
func (s *Store) UpdateRecord(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE records
         SET title = ?, noid = ?, identifier = ?, metadata_json = ?, updated_at = ?
         WHERE id = ?`,
		record.Title,
		nullableString(record.NOID),
		nullableString(record.Identifier),
		nullableString(record.MetadataJSON),
		record.UpdatedAt.Format(time.RFC3339Nano),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// Remove deletes a record and, via cascade, its steps and pages.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CountRecords returns the total number of records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Stats returns a count of steps grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM steps GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("step stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const recordColumns = "id, title, noid, identifier, metadata_json, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id         int64
		title      string
		noid       sql.NullString
		identifier sql.NullString
		metadata   sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &title, &noid, &identifier, &metadata, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	record := &Record{
		ID:           id,
		Title:        title,
		NOID:         noid.String,
		Identifier:   identifier.String,
		MetadataJSON: metadata.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
