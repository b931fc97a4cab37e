package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/coachgrid/tabledit/pkg/types"
)

// Mapper converts between typed records and domain entities.
type Mapper[T any] interface {
	ToEntity(rec types.Record) (T, error)
	FromEntity(entity T) (types.Record, error)
}

// JSONMapper maps records to entities through their JSON form, so entity
// fields are matched to column ids by json tags.
type JSONMapper[T any] struct{}

// ToEntity decodes rec into a T.
func (JSONMapper[T]) ToEntity(rec types.Record) (T, error) {
	var entity T
	data, err := json.Marshal(rec)
	if err != nil {
		return entity, fmt.Errorf("normalize: encode record: %w", err)
	}
	if err := json.Unmarshal(data, &entity); err != nil {
		return entity, fmt.Errorf("normalize: decode entity: %w", err)
	}
	return entity, nil
}

// FromEntity encodes entity as a record. Numbers are kept as json.Number so
// integers survive without float rounding.
func (JSONMapper[T]) FromEntity(entity T) (types.Record, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("normalize: encode entity: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec types.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("normalize: decode record: %w", err)
	}
	return rec, nil
}

// RecordMapper is the identity mapper for tables whose entity is the record itself.
type RecordMapper struct{}

func (RecordMapper) ToEntity(rec types.Record) (types.Record, error) { return rec, nil }

func (RecordMapper) FromEntity(rec types.Record) (types.Record, error) { return rec, nil }

// RowToEntity runs the full save-time pipeline for one row: strict
// normalization, typed conversion and entity mapping.
func RowToEntity[T any](cells map[string]string, cols []types.Column, m Mapper[T]) (T, error) {
	var zero T
	norm, err := NormalizeRow(cells, cols)
	if err != nil {
		return zero, err
	}
	rec, failures := ToRecord(norm, cols)
	for _, c := range cols {
		if msg, ok := failures[c.ID]; ok {
			return zero, fmt.Errorf("normalize: column %q: %s", c.ID, msg)
		}
	}
	return m.ToEntity(rec)
}

// EntityToCells maps an entity back to canonical cells.
func EntityToCells[T any](entity T, cols []types.Column, m Mapper[T]) (map[string]string, error) {
	rec, err := m.FromEntity(entity)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec, cols)
}
