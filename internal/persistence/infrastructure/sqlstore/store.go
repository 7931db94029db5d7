package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	datalog "plc-datalogger/internal/datalog/domain"
	settings "plc-datalogger/internal/settings/domain"
)

var ErrInvalidTableName = errors.New("sqlstore: invalid table name")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store writes tables into a long/narrow SQL table, one record per cell.
type Store struct {
	target  settings.SQLTarget
	dialect dialect
	table   string
}

func New(target settings.SQLTarget) (*Store, error) {
	d, err := dialectFor(target.Driver)
	if err != nil {
		return nil, err
	}
	table := target.TableName()
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return &Store{target: target, dialect: d, table: table}, nil
}

func (s *Store) Kind() string { return string(settings.StorageSQL) + ":" + string(s.target.Driver) }

// Describe names the destination without credentials.
func (s *Store) Describe(label string) string {
	var dest string
	if s.target.Driver == settings.DriverDuckDB {
		dest = fmt.Sprintf("duckdb:%s#%s", s.target.Database, s.table)
	} else {
		dest = fmt.Sprintf("%s://%s@%s/%s#%s", s.target.Driver, s.target.User, s.target.Address(), s.target.Database, s.table)
	}
	if label != "" && label != datalog.LiveLabel {
		dest += " log_date=" + label
	}
	return dest
}

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open(s.dialect.driverName, s.dialect.dsn(s.target))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Ping opens a connection, pings and closes it. Nothing is written.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

// Write replaces the snapshot's day in one transaction.
func (s *Store) Write(ctx context.Context, snap datalog.Snapshot, _ string) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := s.ensureTable(ctx, db); err != nil {
		return err
	}
	date := snap.Label()
	ph := s.dialect.placeholder

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE log_date = %s", s.table, ph(1)), date); err != nil {
		_ = tx.Rollback()
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	log_date,
	row_index,
	ts,
	column_name,
	value_text,
	value_numeric
) VALUES (
	%s, %s, %s, %s, %s, %s
)`, s.table, ph(1), ph(2), ph(3), ph(4), ph(5), ph(6))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, row := range snap.Rows {
		ts := row.TimestampText()
		for _, field := range row.Fields() {
			text := sql.NullString{}
			if field.Value != nil {
				text = sql.NullString{String: datalog.FormatValue(field.Value), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, date, i, ts, field.Column, text, numeric(field.Value)); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *Store) ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	log_date VARCHAR(10) NOT NULL,
	row_index INTEGER NOT NULL,
	ts VARCHAR(19) NOT NULL,
	column_name VARCHAR(255) NOT NULL,
	value_text TEXT,
	value_numeric %s
)`, s.table, s.dialect.numericType)
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func numeric(v any) sql.NullFloat64 {
	f, ok := datalog.Numeric(v)
	return sql.NullFloat64{Float64: f, Valid: ok}
}
