// Package source is the SQLite-backed source of truth for table rows.
package source

// createRowsTableSQL stores every row of every table. Cells are a JSON
// object of canonical strings keyed by column id.
const createRowsTableSQL = `
CREATE TABLE IF NOT EXISTS table_rows (
    table_name TEXT NOT NULL,
    row_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    cells TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (table_name, row_id)
)`

var createRowsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_table_rows_position ON table_rows(table_name, position)`,
}
