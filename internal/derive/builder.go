package derive

import (
	"fmt"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// builder accumulates derived columns and review issues for one table
type builder struct {
	table  *domain.Table
	name   string
	ids    []domain.Value
	issues []Issue
	err    error
}

func newBuilder(t *domain.Table, idColumn string) *builder {
	b := &builder{table: t, name: t.Name}
	if ids, err := t.Column(idColumn); err == nil {
		b.ids = ids
	}
	return b
}

func (b *builder) recordID(row int) string {
	if row < len(b.ids) {
		return b.ids[row].Trimmed()
	}
	return ""
}

func (b *builder) issue(column string, row int, kind IssueKind, value, message string) {
	b.issues = append(b.issues, Issue{
		Table:    b.name,
		Column:   column,
		Row:      row + 1,
		RecordID: b.recordID(row),
		Kind:     kind,
		Value:    value,
		Message:  message,
	})
}

// source returns a raw column. A missing column is recorded once and the
// columns derived from it are skipped.
func (b *builder) source(column string) ([]domain.Value, bool) {
	values, err := b.table.Column(column)
	if err != nil {
		b.issues = append(b.issues, Issue{
			Table:   b.name,
			Column:  column,
			Kind:    IssueMissingColumn,
			Message: err.Error(),
		})
		return nil, false
	}
	return values, true
}

// years parses a year column; unparsable non-blank values are recorded.
func (b *builder) years(column string) ([]*int, bool) {
	values, ok := b.source(column)
	if !ok {
		return nil, false
	}
	out := make([]*int, len(values))
	for i, v := range values {
		if !v.IsPresent() {
			continue
		}
		year, ok := ParseYear(v.String)
		if !ok {
			b.issue(column, i, IssueParse, v.String, "not a year")
			continue
		}
		out[i] = &year
	}
	return out, true
}

// numbers parses a numeric column into canonical text
func (b *builder) numbers(column string) ([]domain.Value, bool) {
	values, ok := b.source(column)
	if !ok {
		return nil, false
	}
	out := make([]domain.Value, len(values))
	for i, v := range values {
		if !v.IsPresent() {
			continue
		}
		f := domain.ParseNumber(v.String)
		if f == nil {
			b.issue(column, i, IssueParse, v.String, "not a number")
			continue
		}
		out[i] = domain.Text(FormatNumber(*f))
	}
	return out, true
}

// normalize maps a categorical column through a lookup table. Blank values
// become nullLabel, or NULL when nullLabel is empty.
func (b *builder) normalize(column string, table map[string]string, nullLabel string) ([]domain.Value, bool) {
	values, ok := b.source(column)
	if !ok {
		return nil, false
	}
	out := make([]domain.Value, len(values))
	for i, v := range values {
		if !v.IsPresent() {
			if nullLabel != "" {
				out[i] = domain.Text(nullLabel)
			}
			continue
		}
		label, mapped := Lookup(table, v.String)
		if !mapped {
			b.issue(column, i, IssueUnmapped, v.String, "value not in vocabulary")
		}
		out[i] = domain.Text(label)
	}
	return out, true
}

// set adds or replaces a derived column
func (b *builder) set(column string, values []domain.Value) {
	if b.err != nil {
		return
	}
	t, err := b.table.WithColumn(column, values)
	if err != nil {
		b.err = fmt.Errorf("derive %s.%s: %w", b.name, column, err)
		return
	}
	b.table = t
}

func (b *builder) result() (*domain.Table, []Issue, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	return b.table, b.issues, nil
}
