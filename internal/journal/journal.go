// Package journal provides a durable append-only log of edit operations so an
// edit session's unsaved changes survive a restart.
//
// Segments are named journal_{segmentID:016x}.log and hold frames of
// [length:4][crc32:4][payload:length], little endian, payload JSON.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coachgrid/tabledit/pkg/types"
)

const (
	segmentPrefix = "journal_"
	segmentSuffix = ".log"
	frameHeader   = 8
)

// OpKind identifies a journaled operation.
type OpKind string

const (
	OpUpdate  OpKind = "update"
	OpPaste   OpKind = "paste"
	OpClear   OpKind = "clear"
	OpRestore OpKind = "restore"
)

// Entry is one journaled operation.
type Entry struct {
	Seq       uint64         `json:"seq"`
	Kind      OpKind         `json:"kind"`
	Cell      *types.CellRef `json:"cell,omitempty"`
	Value     string         `json:"value,omitempty"`
	Text      string         `json:"text,omitempty"`
	At        *types.GridPos `json:"at,omitempty"`
	Diffs     types.Diffs    `json:"diffs,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Update returns an entry recording a cell edit.
func Update(rowID, columnID, value string) *Entry {
	return &Entry{Kind: OpUpdate, Cell: &types.CellRef{RowID: rowID, ColumnID: columnID}, Value: value}
}

// Paste returns an entry recording a paste anchored at pos.
func Paste(text string, pos types.GridPos) *Entry {
	return &Entry{Kind: OpPaste, Text: text, At: &pos}
}

// Clear returns an entry recording a discard of all changes.
func Clear() *Entry {
	return &Entry{Kind: OpClear}
}

// Restore returns an entry recording a wholesale diff replacement.
func Restore(d types.Diffs) *Entry {
	return &Entry{Kind: OpRestore, Diffs: d.Clone()}
}

// Journal is the on-disk log of one session.
type Journal struct {
	dir        string
	segment    *os.File
	segmentID  uint64
	offset     int64
	maxSegSize int64
	seq        uint64
	mu         sync.Mutex
}

// Open opens or creates the journal in dir. Existing segments are kept and
// new entries continue their sequence.
func Open(dir string, maxSegSize int64) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("journal: failed to create directory: %w", err)
	}

	j := &Journal{dir: dir, maxSegSize: maxSegSize}

	segments, err := j.segments()
	if err != nil {
		return nil, err
	}
	if n := len(segments); n > 0 {
		last := filepath.Base(segments[n-1])
		if _, err := fmt.Sscanf(last[len(segmentPrefix):], "%016x", &j.segmentID); err != nil {
			return nil, fmt.Errorf("journal: bad segment name %s: %w", last, err)
		}
		if err := repairTail(segments[n-1]); err != nil {
			return nil, err
		}
		entries, err := j.Entries()
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			j.seq = entries[len(entries)-1].Seq
		}
	}

	if err := j.openSegment(); err != nil {
		return nil, err
	}
	return j, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Append writes an entry, assigns its sequence number and fsyncs.
func (j *Journal) Append(e *Entry) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.segment == nil {
		return 0, fmt.Errorf("journal: closed")
	}

	j.seq++
	e.Seq = j.seq
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixNano()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		j.seq--
		return 0, fmt.Errorf("journal: failed to serialize entry: %w", err)
	}

	if err := j.writeFrame(payload); err != nil {
		return 0, err
	}
	return e.Seq, nil
}

func (j *Journal) writeFrame(payload []byte) error {
	frame := make([]byte, frameHeader+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(payload))
	copy(frame[frameHeader:], payload)

	if _, err := j.segment.Write(frame); err != nil {
		return fmt.Errorf("journal: failed to write entry: %w", err)
	}
	if err := j.segment.Sync(); err != nil {
		return fmt.Errorf("journal: failed to fsync: %w", err)
	}

	j.offset += int64(len(frame))
	if j.offset >= j.maxSegSize {
		return j.rotate()
	}
	return nil
}

// Entries reads every intact entry across all segments in order.
func (j *Journal) Entries() ([]*Entry, error) {
	segments, err := j.segments()
	if err != nil {
		return nil, err
	}
	var all []*Entry
	for _, path := range segments {
		entries, err := ReadSegment(path)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// Truncate drops every entry. It is called once the journaled changes are
// saved or discarded.
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.segment != nil {
		if err := j.segment.Close(); err != nil {
			return fmt.Errorf("journal: failed to close segment: %w", err)
		}
		j.segment = nil
	}
	segments, err := j.segments()
	if err != nil {
		return err
	}
	for _, path := range segments {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("journal: failed to remove segment: %w", err)
		}
	}
	j.segmentID++
	return j.openSegment()
}

// Close fsyncs and closes the current segment.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.segment == nil {
		return nil
	}
	if err := j.segment.Sync(); err != nil {
		return fmt.Errorf("journal: failed to fsync on close: %w", err)
	}
	if err := j.segment.Close(); err != nil {
		return fmt.Errorf("journal: failed to close segment: %w", err)
	}
	j.segment = nil
	return nil
}

// Remove closes the journal and deletes its directory.
func (j *Journal) Remove() error {
	if err := j.Close(); err != nil {
		return err
	}
	return os.RemoveAll(j.dir)
}

func (j *Journal) rotate() error {
	if err := j.segment.Close(); err != nil {
		return fmt.Errorf("journal: failed to close segment: %w", err)
	}
	j.segmentID++
	return j.openSegment()
}

func (j *Journal) openSegment() error {
	path := filepath.Join(j.dir, fmt.Sprintf("%s%016x%s", segmentPrefix, j.segmentID, segmentSuffix))
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("journal: failed to open segment: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return fmt.Errorf("journal: failed to seek segment: %w", err)
	}
	j.segment = file
	j.offset = offset
	return nil
}

// segments lists segment paths in sequence order.
func (j *Journal) segments() ([]string, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("journal: failed to read directory: %w", err)
	}
	var out []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		out = append(out, filepath.Join(j.dir, name))
	}
	// Fixed-width hex ids sort chronologically.
	sort.Strings(out)
	return out, nil
}

// repairTail cuts a torn trailing frame off the segment at path so that
// frames appended after a crash stay readable.
func repairTail(path string) error {
	_, end, size, err := scanSegment(path)
	if err != nil {
		return err
	}
	if end == size {
		return nil
	}
	log.Printf("journal: dropping %d torn bytes at offset %d in %s", size-end, end, path)
	if err := os.Truncate(path, end); err != nil {
		return fmt.Errorf("journal: failed to truncate torn segment: %w", err)
	}
	return nil
}

// ReadSegment reads the entries of one segment file. A truncated trailing
// frame ends the segment; frames failing their checksum are skipped.
func ReadSegment(path string) ([]*Entry, error) {
	entries, _, _, err := scanSegment(path)
	return entries, err
}

// scanSegment returns the segment's intact entries, the offset just past its
// last complete frame and the file size. A frame whose declared length runs
// past the end of the file is a torn tail.
func scanSegment(path string) ([]*Entry, int64, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("journal: failed to open segment: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("journal: failed to stat segment: %w", err)
	}
	size := info.Size()

	var (
		entries []*Entry
		header  [frameHeader]byte
		offset  int64
	)
	for {
		if _, err := io.ReadFull(file, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, 0, 0, fmt.Errorf("journal: failed to read frame header: %w", err)
		}
		length := int64(binary.LittleEndian.Uint32(header[0:4]))
		crc := binary.LittleEndian.Uint32(header[4:8])

		if length > size-offset-frameHeader {
			log.Printf("journal: truncated entry at offset %d in %s", offset, path)
			break
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(file, payload); err != nil {
			log.Printf("journal: truncated entry at offset %d in %s", offset, path)
			break
		}
		frameAt := offset
		offset += frameHeader + length

		if crc32.ChecksumIEEE(payload) != crc {
			log.Printf("journal: CRC mismatch at offset %d in %s, skipping entry", frameAt, path)
			continue
		}

		var e Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			log.Printf("journal: undecodable entry at offset %d in %s, skipping", frameAt, path)
			continue
		}
		entries = append(entries, &e)
	}
	return entries, offset, size, nil
}
