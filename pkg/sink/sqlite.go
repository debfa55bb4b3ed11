package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

const defaultTable = "export"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSink stores values in a (seq, value) table. seq continues from the
// highest existing row, so repeated exports into one file append.
type SQLiteSink struct {
	db      *sql.DB
	table   string
	raw     bool
	seq     int64
	pending []sql.NullString
}

// NewSQLiteSink opens (or creates) the database at path.
func NewSQLiteSink(ctx context.Context, path, table string, raw bool) (*SQLiteSink, error) {
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One writer; the sink is sequential anyway.
	db.SetMaxOpenConns(1)

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (seq INTEGER PRIMARY KEY, value TEXT)`, table)
	if _, err := db.ExecContext(ctx, create); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	var seq int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) FROM %s`, table)).Scan(&seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("read last seq: %w", err)
	}

	return &SQLiteSink{db: db, table: table, raw: raw, seq: seq}, nil
}

// Write buffers value until the next Flush. JSON null is stored as SQL NULL.
func (s *SQLiteSink) Write(ctx context.Context, value json.RawMessage) error {
	if isNull(value) {
		s.pending = append(s.pending, sql.NullString{})
		return nil
	}
	s.pending = append(s.pending, sql.NullString{String: string(render(value, s.raw)), Valid: true})
	return nil
}

// Flush inserts buffered values in one transaction.
func (s *SQLiteSink) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	if err := s.insert(ctx); err != nil {
		SinkErrors.WithLabelValues(string(TypeSQLite), "flush").Inc()
		return err
	}

	SinkWrites.WithLabelValues(string(TypeSQLite)).Add(float64(len(s.pending)))
	s.seq += int64(len(s.pending))
	s.pending = s.pending[:0]
	return nil
}

func (s *SQLiteSink) insert(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (seq, value) VALUES (?, ?)`, s.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range s.pending {
		if _, err := stmt.ExecContext(ctx, s.seq+int64(i)+1, v); err != nil {
			return fmt.Errorf("insert row %d: %w", s.seq+int64(i)+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *SQLiteSink) Close() error {
	err := s.Flush(context.Background())
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close sqlite: %w", cerr)
	}
	return err
}
