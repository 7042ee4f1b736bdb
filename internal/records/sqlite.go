package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/offline-triage-engine/internal/domain"
)

// DefaultListLimit applies when a filter sets no limit.
const DefaultListLimit = 50

// maxExportLimit is the maximum number of records to export at once.
const maxExportLimit = 1000000

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `SELECT id, request_id, patient_ref, urgency_level, urgency_score,
	symptom_codes, result, created_at FROM health_records`

// SQLiteStore implements domain.HealthRecordStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite record store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// NewStoreWithDB wraps an already opened database. The schema must exist.
func NewStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.HealthRecord, error) {
	record := &domain.HealthRecord{}
	var level, codes, result, createdAt string

	err := s.Scan(
		&record.ID, &record.RequestID, &record.PatientRef, &level, &record.UrgencyScore,
		&codes, &result, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	record.UrgencyLevel = domain.UrgencyLevel(level)
	if err := json.Unmarshal([]byte(codes), &record.SymptomCodes); err != nil {
		return nil, fmt.Errorf("record %s: bad symptom codes: %w", record.ID, err)
	}
	if result != "" && result != "null" {
		record.Result = &domain.AnalysisResult{}
		if err := json.Unmarshal([]byte(result), record.Result); err != nil {
			return nil, fmt.Errorf("record %s: bad result: %w", record.ID, err)
		}
	}
	if record.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("record %s: bad timestamp: %w", record.ID, err)
	}
	return record, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS health_records (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL DEFAULT '',
		patient_ref TEXT NOT NULL DEFAULT '',
		urgency_level TEXT NOT NULL,
		urgency_score REAL NOT NULL,
		symptom_codes TEXT NOT NULL DEFAULT '[]',
		result TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_patient_ref ON health_records(patient_ref);
	CREATE INDEX IF NOT EXISTS idx_records_urgency_level ON health_records(urgency_level);
	CREATE INDEX IF NOT EXISTS idx_records_created_at ON health_records(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a record, replacing any record with the same ID. A record
// without an ID is assigned one.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.HealthRecord) error {
	if record == nil {
		return domain.NewValidationError("record", "record is required", nil)
	}
	if !record.UrgencyLevel.IsValid() {
		return domain.NewValidationError("urgency_level", "invalid urgency level", record.UrgencyLevel)
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.SymptomCodes == nil {
		record.SymptomCodes = []string{}
	}

	codes, err := json.Marshal(record.SymptomCodes)
	if err != nil {
		return fmt.Errorf("failed to encode symptom codes: %w", err)
	}
	result := []byte("")
	if record.Result != nil {
		if result, err = json.Marshal(record.Result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO health_records (
			id, request_id, patient_ref, urgency_level, urgency_score,
			symptom_codes, result, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			request_id = excluded.request_id,
			patient_ref = excluded.patient_ref,
			urgency_level = excluded.urgency_level,
			urgency_score = excluded.urgency_score,
			symptom_codes = excluded.symptom_codes,
			result = excluded.result
	`,
		record.ID,
		record.RequestID,
		record.PatientRef,
		string(record.UrgencyLevel),
		record.UrgencyScore,
		string(codes),
		string(result),
		record.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.HealthRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// List returns records matching filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter domain.RecordFilter) ([]*domain.HealthRecord, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter.PatientRef != "" {
		clauses = append(clauses, "patient_ref = ?")
		args = append(args, filter.PatientRef)
	}
	if filter.UrgencyLevel != "" {
		clauses = append(clauses, "urgency_level = ?")
		args = append(args, string(filter.UrgencyLevel))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.HealthRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM health_records").Scan(&count)
	return count, err
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM health_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	return nil
}

// ExportJSON exports all records to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, domain.RecordFilter{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	export := &RecordExport{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports records from a JSON reader. Records whose ID already
// exists are skipped.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export RecordExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, record := range export.Records {
		if record == nil {
			continue
		}
		if record.ID != "" {
			_, getErr := s.Get(ctx, record.ID)
			if getErr == nil {
				skipped++
				continue
			}
			if !errors.Is(getErr, domain.ErrRecordNotFound) {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", getErr)
			}
		}

		if err := s.Save(ctx, record); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.HealthRecordStore = (*SQLiteStore)(nil)
