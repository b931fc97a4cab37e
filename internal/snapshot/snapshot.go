// Package snapshot stores point-in-time copies of table rows in object storage.
// A snapshot object lives at snapshots/<table>/<id>.json.sz and is laid out as
//
//	[murmur3 of JSON:8][snappy(JSON)]
//
// with the checksum in little endian.
package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/storage"
	"github.com/coachgrid/tabledit/pkg/types"
)

const (
	rootPrefix   = "snapshots"
	extension    = ".json.sz"
	checksumSize = 8
)

// Snapshot is the decoded content of one snapshot object.
type Snapshot struct {
	ID        string      `json:"id"`
	Table     string      `json:"table"`
	Columns   []string    `json:"columns"`
	Rows      []types.Row `json:"rows"`
	CreatedAt int64       `json:"created_at"`
}

// ObjectPath returns where a snapshot is stored.
func ObjectPath(table, id string) string {
	return path.Join(rootPrefix, table, id+extension)
}

// Writer persists snapshots.
type Writer struct {
	store storage.ObjectStorage
	now   func() time.Time
}

// NewWriter creates a snapshot writer over store.
func NewWriter(store storage.ObjectStorage) *Writer {
	return &Writer{store: store, now: time.Now}
}

// Write stores rows as a new snapshot of table. Only the cells of the given
// columns are kept.
func (w *Writer) Write(ctx context.Context, table string, cols []types.Column, rows []types.Row) (*Snapshot, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, tderrors.NewInternalError("failed to generate snapshot id", err)
	}
	snap := &Snapshot{
		ID:        id.String(),
		Table:     table,
		Columns:   make([]string, len(cols)),
		Rows:      make([]types.Row, 0, len(rows)),
		CreatedAt: w.now().Unix(),
	}
	for i, c := range cols {
		snap.Columns[i] = c.ID
	}
	for _, r := range rows {
		if r.IsGhost() {
			continue
		}
		cells := make(map[string]string, len(cols))
		for _, id := range snap.Columns {
			cells[id] = r.Cells[id]
		}
		snap.Rows = append(snap.Rows, types.Row{ID: r.ID, Cells: cells})
	}

	data, err := Encode(snap)
	if err != nil {
		return nil, err
	}
	if err := w.store.Put(ctx, ObjectPath(table, snap.ID), data); err != nil {
		return nil, tderrors.NewStorageError(tderrors.CodeUploadFailed,
			fmt.Sprintf("failed to store snapshot of %s", table), err)
	}
	return snap, nil
}

// Reader loads snapshots.
type Reader struct {
	store storage.ObjectStorage
	cache *Cache
}

// NewReader creates a snapshot reader over store.
func NewReader(store storage.ObjectStorage) *Reader {
	return &Reader{store: store}
}

// WithCache makes the reader keep fetched objects in c.
func (r *Reader) WithCache(c *Cache) *Reader {
	r.cache = c
	return r
}

// Read loads one snapshot. Every call decodes a fresh copy.
func (r *Reader) Read(ctx context.Context, table, id string) (*Snapshot, error) {
	data, err := r.fetch(ctx, ObjectPath(table, id))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, tderrors.NewStorageError(tderrors.CodeObjectNotFound,
			fmt.Sprintf("snapshot %s/%s not found", table, id), err)
	}
	if err != nil {
		return nil, tderrors.NewStorageError(tderrors.CodeDownloadFailed,
			fmt.Sprintf("failed to read snapshot %s/%s", table, id), err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if snap.Table != table {
		return nil, tderrors.NewStorageError(tderrors.CodeCorrupt,
			fmt.Sprintf("snapshot %s belongs to table %q", id, snap.Table), nil)
	}
	return snap, nil
}

func (r *Reader) fetch(ctx context.Context, objectPath string) ([]byte, error) {
	if r.cache != nil {
		if data, ok := r.cache.Get(objectPath); ok {
			return data, nil
		}
	}
	data, err := r.store.Get(ctx, objectPath)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Put(objectPath, data)
	}
	return data, nil
}

// List returns the snapshot ids of table, oldest first. Ids are version 7
// UUIDs, so sorting them orders by creation time.
func (r *Reader) List(ctx context.Context, table string) ([]string, error) {
	objects, err := r.store.List(ctx, path.Join(rootPrefix, table)+"/")
	if err != nil {
		return nil, tderrors.NewStorageError(tderrors.CodeDownloadFailed,
			fmt.Sprintf("failed to list snapshots of %s", table), err)
	}
	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		name := path.Base(obj)
		if strings.HasSuffix(name, extension) {
			ids = append(ids, strings.TrimSuffix(name, extension))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Encode serializes a snapshot.
func Encode(snap *Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, tderrors.NewInternalError("failed to marshal snapshot", err)
	}
	out := make([]byte, checksumSize, checksumSize+snappy.MaxEncodedLen(len(raw)))
	binary.LittleEndian.PutUint64(out, murmur3.Sum64(raw))
	return append(out, snappy.Encode(nil, raw)...), nil
}

// Decode parses a serialized snapshot.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < checksumSize {
		return nil, tderrors.NewStorageError(tderrors.CodeCorrupt, "snapshot is truncated", nil)
	}
	raw, err := snappy.Decode(nil, data[checksumSize:])
	if err != nil {
		return nil, tderrors.NewStorageError(tderrors.CodeCorrupt, "snapshot is not valid snappy data", err)
	}
	if binary.LittleEndian.Uint64(data) != murmur3.Sum64(raw) {
		return nil, tderrors.NewStorageError(tderrors.CodeCorrupt, "snapshot checksum mismatch", nil)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, tderrors.NewStorageError(tderrors.CodeCorrupt, "snapshot is not valid JSON", err)
	}
	return &snap, nil
}
