package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Store reads and writes table rows in a SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // serializes writers
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("source: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("source: failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(createRowsTableSQL); err != nil {
		return err
	}
	for _, stmt := range createRowsIndexesSQL {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the rows of a table in position order.
func (s *Store) Load(ctx context.Context, tableName string) ([]types.Row, error) {
	rs, err := s.db.QueryContext(ctx,
		`SELECT row_id, cells FROM table_rows WHERE table_name = ? ORDER BY position, row_id`, tableName)
	if err != nil {
		return nil, tderrors.NewSourceError(tderrors.CodeLoadFailed, "load "+tableName, err)
	}
	defer rs.Close()

	rows := []types.Row{}
	for rs.Next() {
		var id, raw string
		if err := rs.Scan(&id, &raw); err != nil {
			return nil, tderrors.NewSourceError(tderrors.CodeLoadFailed, "scan "+tableName, err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, tderrors.NewSourceError(tderrors.CodeLoadFailed,
				fmt.Sprintf("decode %s/%s", tableName, id), err)
		}
		rows = append(rows, types.Row{ID: id, Cells: cells})
	}
	if err := rs.Err(); err != nil {
		return nil, tderrors.NewSourceError(tderrors.CodeLoadFailed, "load "+tableName, err)
	}
	return rows, nil
}

// Update merges the given cells into existing rows. Cells not mentioned
// keep their stored value. Every row must exist.
func (s *Store) Update(ctx context.Context, tableName string, rows []types.Row) error {
	return s.inTx(ctx, "update "+tableName, func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()
		for _, r := range rows {
			var raw string
			err := tx.QueryRowContext(ctx,
				`SELECT cells FROM table_rows WHERE table_name = ? AND row_id = ?`, tableName, r.ID).Scan(&raw)
			if err == sql.ErrNoRows {
				return fmt.Errorf("row %s not found", r.ID)
			}
			if err != nil {
				return err
			}
			cells, err := decodeCells(raw)
			if err != nil {
				return err
			}
			for k, v := range r.Cells {
				cells[k] = v
			}
			data, err := json.Marshal(cells)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE table_rows SET cells = ?, updated_at = ? WHERE table_name = ? AND row_id = ?`,
				string(data), now, tableName, r.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Insert appends rows after the current last row.
func (s *Store) Insert(ctx context.Context, tableName string, rows []types.Row) error {
	return s.inTx(ctx, "insert "+tableName, func(tx *sql.Tx) error {
		return insertRows(ctx, tx, tableName, rows)
	})
}

// Replace swaps the whole content of a table.
func (s *Store) Replace(ctx context.Context, tableName string, rows []types.Row) error {
	return s.inTx(ctx, "replace "+tableName, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM table_rows WHERE table_name = ?`, tableName); err != nil {
			return err
		}
		return insertRows(ctx, tx, tableName, rows)
	})
}

// Delete removes rows by id. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, tableName string, ids []string) error {
	return s.inTx(ctx, "delete "+tableName, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM table_rows WHERE table_name = ? AND row_id = ?`, tableName, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tderrors.NewSourceError(tderrors.CodeSaveFailed, op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("source: rollback %s: %v", op, rbErr)
		}
		return tderrors.NewSourceError(tderrors.CodeSaveFailed, op, err)
	}
	if err := tx.Commit(); err != nil {
		return tderrors.NewSourceError(tderrors.CodeSaveFailed, op, err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, tableName string, rows []types.Row) error {
	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM table_rows WHERE table_name = ?`, tableName).Scan(&next); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for i, r := range rows {
		data, err := json.Marshal(r.Cells)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO table_rows (table_name, row_id, position, cells, updated_at) VALUES (?, ?, ?, ?, ?)`,
			tableName, r.ID, next+int64(i), string(data), now); err != nil {
			return fmt.Errorf("row %s: %w", r.ID, err)
		}
	}
	return nil
}

func decodeCells(raw string) (map[string]string, error) {
	cells := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, err
	}
	return cells, nil
}
