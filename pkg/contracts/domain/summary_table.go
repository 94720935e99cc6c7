package domain

// SummaryTable is one computed summary table, ready for export.
//
// Rows hold display strings in final order. Total, when set, is written as
// the last CSV row and shown under a rule in the text report. A table that
// could not be computed keeps its ID and Title and carries the reason in
// Error; exporters skip it and the report lists it as failed.
type SummaryTable struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Caption string     `json:"caption"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Total   []string   `json:"total,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Failed reports whether the table could not be computed
func (t *SummaryTable) Failed() bool {
	return t.Error != ""
}

// Records returns the body rows followed by the Total row, if any
func (t *SummaryTable) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Rows...)
	if len(t.Total) > 0 {
		out = append(out, t.Total)
	}
	return out
}

// FileName returns the CSV file name of the table
func (t *SummaryTable) FileName() string {
	return t.ID + ".csv"
}
