package observability

import (
	"sort"
	"sync"
	"time"
)

// EditStats tracks how often each column of each table is edited.
type EditStats struct {
	mu     sync.RWMutex
	tables map[string]map[string]*ColumnStats
	window time.Duration
	now    func() time.Time
}

// ColumnStats holds edit statistics for one column.
type ColumnStats struct {
	Column    string         `json:"column"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Sources   map[string]int `json:"sources"` // edit source → count (e.g., "edit" → 5, "paste" → 2)
}

// NewEditStats creates a tracker whose entries expire after window.
func NewEditStats(window time.Duration) *EditStats {
	return &EditStats{
		tables: make(map[string]map[string]*ColumnStats),
		window: window,
		now:    time.Now,
	}
}

// Record counts one edit of a column.
func (e *EditStats) Record(table, column, source string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cols, ok := e.tables[table]
	if !ok {
		cols = make(map[string]*ColumnStats)
		e.tables[table] = cols
	}
	stats, ok := cols[column]
	if !ok {
		stats = &ColumnStats{Column: column, Sources: make(map[string]int)}
		cols[column] = stats
	}
	stats.Frequency++
	stats.LastSeen = e.now()
	stats.Sources[source]++
}

// Top returns copies of the n most edited columns of table, most edited first.
func (e *EditStats) Top(table string, n int) []ColumnStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cols := e.tables[table]
	if n <= 0 || len(cols) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(cols))
	for _, s := range cols {
		cp := *s
		cp.Sources = make(map[string]int, len(s.Sources))
		for k, v := range s.Sources {
			cp.Sources[k] = v
		}
		stats = append(stats, cp)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune drops entries not seen within the window.
func (e *EditStats) Prune() {
	e.mu.Lock()
	defer e.mu.Unlock()

	threshold := e.now().Add(-e.window)
	for table, cols := range e.tables {
		for col, stats := range cols {
			if stats.LastSeen.Before(threshold) {
				delete(cols, col)
			}
		}
		if len(cols) == 0 {
			delete(e.tables, table)
		}
	}
}
