package knowledge

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Pool limits for a shared PostgreSQL knowledge base. A load runs three
// sequential queries, so a small pool is enough.
const (
	postgresMaxOpenConns = 4
	postgresConnMaxIdle  = 5 * time.Minute
)

// NewPostgresProvider reads the knowledge base tables from PostgreSQL
// through pgx. The schema matches CreateSchema. No connection is made
// until Load.
func NewPostgresProvider(dsn string) (*SQLProvider, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(postgresMaxOpenConns)
	db.SetConnMaxIdleTime(postgresConnMaxIdle)

	return &SQLProvider{db: db, name: "postgres:" + connConfig.Database, own: true}, nil
}
