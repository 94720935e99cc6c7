package domain

import (
	"fmt"
	"strings"
)

// Table names as stored in the water value database.
const (
	TableScreening      = "screening"
	TableClassification = "classification"
	TableWaterValues    = "water_values"
)

// TableNames lists the three source tables in pipeline order.
var TableNames = []string{TableScreening, TableClassification, TableWaterValues}

// Value is a nullable text cell read from the store.
//
// Every column is carried as text so that derivation can decide how to parse
// it and record the rows it could not parse. A NULL in the store is a Value
// with Valid == false; an empty string is Valid but not present.
type Value struct {
	String string `json:"value"`
	Valid  bool   `json:"valid"`
}

// Text returns a present Value holding s.
func Text(s string) Value {
	return Value{String: s, Valid: true}
}

// Null returns a NULL Value.
func Null() Value {
	return Value{}
}

// IsPresent reports whether the value is non-null and non-empty after trimming.
func (v Value) IsPresent() bool {
	return v.Valid && strings.TrimSpace(v.String) != ""
}

// Trimmed returns the trimmed text, or "" when the value is NULL.
func (v Value) Trimmed() string {
	if !v.Valid {
		return ""
	}
	return strings.TrimSpace(v.String)
}

// Row is one record of a Table, aligned with Table.Columns.
type Row []Value

// Table is an immutable, column-named set of rows.
//
// Tables are never mutated in place: WithColumn returns a new Table that
// shares unchanged cells with its parent. Row order is the store's rowid
// order and is preserved by every transformation in the pipeline.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable builds a table, padding short rows with NULLs.
func NewTable(name string, columns []string, rows []Row) *Table {
	out := make([]Row, len(rows))
	for i, r := range rows {
		if len(r) < len(columns) {
			padded := make(Row, len(columns))
			copy(padded, r)
			r = padded
		}
		out[i] = r
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols, Rows: out}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]Value, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		tableName := ""
		if t != nil {
			tableName = t.Name
		}
		return nil, &MissingColumnError{Table: tableName, Column: name}
	}
	values := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		values[i] = r[idx]
	}
	return values, nil
}

// ColumnSet returns several columns at once, failing on the first missing one.
func (t *Table) ColumnSet(names ...string) (map[string][]Value, error) {
	set := make(map[string][]Value, len(names))
	for _, n := range names {
		values, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		set[n] = values
	}
	return set, nil
}

// WithColumn returns a new table with the named column set to values.
// An existing column of the same name is replaced in place; otherwise the
// column is appended. values must have one entry per row.
func (t *Table) WithColumn(name string, values []Value) (*Table, error) {
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %s has %d values for %d rows in %s", name, len(values), t.Len(), t.Name)
	}

	idx := t.ColumnIndex(name)
	cols := make([]string, len(t.Columns), len(t.Columns)+1)
	copy(cols, t.Columns)
	if idx < 0 {
		cols = append(cols, name)
		idx = len(cols) - 1
	}

	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(cols))
		copy(nr, r)
		nr[idx] = values[i]
		rows[i] = nr
	}
	return &Table{Name: t.Name, Columns: cols, Rows: rows}, nil
}

// Records returns the table as string records (NULL becomes "").
func (t *Table) Records() [][]string {
	records := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(r) && r[j].Valid {
				rec[j] = r[j].String
			}
		}
		records[i] = rec
	}
	return records
}

// Dataset groups the three source tables.
type Dataset struct {
	Screening      *Table `json:"screening"`
	Classification *Table `json:"classification"`
	WaterValues    *Table `json:"water_values"`
}

// Table returns the dataset's table by store name.
func (d *Dataset) Table(name string) *Table {
	switch name {
	case TableScreening:
		return d.Screening
	case TableClassification:
		return d.Classification
	case TableWaterValues:
		return d.WaterValues
	}
	return nil
}

// Tables returns the non-nil tables in pipeline order.
func (d *Dataset) Tables() []*Table {
	var out []*Table
	for _, name := range TableNames {
		if t := d.Table(name); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// MissingColumnError reports a column a computation needed but the table lacks.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %s has no column %q", e.Table, e.Column)
}
