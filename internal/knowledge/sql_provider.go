package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/offline-triage-engine/internal/domain"
)

// SQLProvider reads the knowledge base from three tables: symptoms,
// condition_patterns and protocols. List-valued columns hold JSON arrays.
type SQLProvider struct {
	db   *sql.DB
	name string
	own  bool
}

// NewSQLProvider creates a provider over an open database handle. The
// caller keeps ownership of db.
func NewSQLProvider(db *sql.DB, name string) *SQLProvider {
	return &SQLProvider{db: db, name: name}
}

// NewSQLiteProvider opens the SQLite knowledge base at path. The file must
// already exist; an empty database would only hide a misconfiguration.
func NewSQLiteProvider(path string) (*SQLProvider, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("knowledge base database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLProvider{db: db, name: "sqlite:" + filepath.Base(path), own: true}, nil
}

// Name implements domain.KnowledgeBaseProvider.
func (p *SQLProvider) Name() string { return p.name }

// Close releases the database if this provider opened it.
func (p *SQLProvider) Close() error {
	if p.own {
		return p.db.Close()
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// Load implements domain.KnowledgeBaseProvider.
func (p *SQLProvider) Load(ctx context.Context) (*domain.KnowledgeBase, error) {
	kb := &domain.KnowledgeBase{}
	var err error

	if kb.SymptomsCatalog, err = p.loadSymptoms(ctx); err != nil {
		return nil, fmt.Errorf("failed to load symptoms: %w", err)
	}
	if kb.ConditionPatterns, err = p.loadPatterns(ctx); err != nil {
		return nil, fmt.Errorf("failed to load condition patterns: %w", err)
	}
	if kb.Protocols, err = p.loadProtocols(ctx); err != nil {
		return nil, fmt.Errorf("failed to load protocols: %w", err)
	}
	return kb, nil
}

func (p *SQLProvider) loadSymptoms(ctx context.Context) ([]domain.SymptomDefinition, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT code, name, aliases, body_system FROM symptoms ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SymptomDefinition
	for rows.Next() {
		def, err := scanSymptom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, def)
	}
	return result, rows.Err()
}

func scanSymptom(s scanner) (domain.SymptomDefinition, error) {
	var def domain.SymptomDefinition
	var aliases string
	if err := s.Scan(&def.Code, &def.Name, &aliases, &def.BodySystem); err != nil {
		return def, err
	}
	if err := decodeList(aliases, &def.Aliases); err != nil {
		return def, fmt.Errorf("symptom %s aliases: %w", def.Code, err)
	}
	return def, nil
}

func (p *SQLProvider) loadPatterns(ctx context.Context) ([]domain.ConditionPattern, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, icd_code, description, symptoms, threshold, categories
		FROM condition_patterns
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ConditionPattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, pattern)
	}
	return result, rows.Err()
}

func scanPattern(s scanner) (domain.ConditionPattern, error) {
	var cp domain.ConditionPattern
	var symptoms, categories string
	if err := s.Scan(&cp.ID, &cp.Name, &cp.ICDCode, &cp.Description, &symptoms, &cp.Threshold, &categories); err != nil {
		return cp, err
	}
	if err := decodeList(symptoms, &cp.Symptoms); err != nil {
		return cp, fmt.Errorf("pattern %s symptoms: %w", cp.ID, err)
	}
	if err := decodeList(categories, &cp.Categories); err != nil {
		return cp, fmt.Errorf("pattern %s categories: %w", cp.ID, err)
	}
	return cp, nil
}

func (p *SQLProvider) loadProtocols(ctx context.Context) ([]domain.Protocol, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT condition_id, home_care, follow_up, seek_care_if
		FROM protocols
		ORDER BY condition_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Protocol
	for rows.Next() {
		var pr domain.Protocol
		var homeCare, followUp, seekCare string
		if err := rows.Scan(&pr.ConditionID, &homeCare, &followUp, &seekCare); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for _, f := range []struct {
			raw string
			dst *[]string
		}{{homeCare, &pr.HomeCare}, {followUp, &pr.FollowUp}, {seekCare, &pr.SeekCareIf}} {
			if err := decodeList(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("protocol %s: %w", pr.ConditionID, err)
			}
		}
		result = append(result, pr)
	}
	return result, rows.Err()
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(values)
	return string(data)
}

// CreateSchema creates the knowledge base tables.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS symptoms (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		aliases TEXT NOT NULL DEFAULT '[]',
		body_system TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS condition_patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		icd_code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		symptoms TEXT NOT NULL,
		threshold REAL NOT NULL,
		categories TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS protocols (
		condition_id TEXT PRIMARY KEY,
		home_care TEXT NOT NULL DEFAULT '[]',
		follow_up TEXT NOT NULL DEFAULT '[]',
		seek_care_if TEXT NOT NULL DEFAULT '[]'
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Import replaces the contents of the knowledge base tables with kb in a
// single transaction.
func Import(ctx context.Context, db *sql.DB, kb *domain.KnowledgeBase) error {
	if err := kb.Validate(); err != nil {
		return fmt.Errorf("refusing to import invalid knowledge base: %w", err)
	}
	if err := CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"symptoms", "condition_patterns", "protocols"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, s := range kb.SymptomsCatalog {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO symptoms (code, name, aliases, body_system) VALUES (?, ?, ?, ?)`,
			s.Code, s.Name, encodeList(s.Aliases), s.BodySystem,
		); err != nil {
			return fmt.Errorf("failed to insert symptom %s: %w", s.Code, err)
		}
	}
	for _, cp := range kb.ConditionPatterns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO condition_patterns (id, name, icd_code, description, symptoms, threshold, categories)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			cp.ID, cp.Name, cp.ICDCode, cp.Description, encodeList(cp.Symptoms), cp.Threshold, encodeList(cp.Categories),
		); err != nil {
			return fmt.Errorf("failed to insert pattern %s: %w", cp.ID, err)
		}
	}
	for _, pr := range kb.Protocols {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO protocols (condition_id, home_care, follow_up, seek_care_if) VALUES (?, ?, ?, ?)`,
			pr.ConditionID, encodeList(pr.HomeCare), encodeList(pr.FollowUp), encodeList(pr.SeekCareIf),
		); err != nil {
			return fmt.Errorf("failed to insert protocol %s: %w", pr.ConditionID, err)
		}
	}

	return tx.Commit()
}

// ImportSQLiteFile writes kb into a SQLite file, creating it if needed.
func ImportSQLiteFile(ctx context.Context, path string, kb *domain.KnowledgeBase) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return Import(ctx, db, kb)
}
