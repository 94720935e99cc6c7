// Package testutil builds water value datasets and store files for tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/energy-modelling-hub/water-value-database/internal/store"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Null marks a NULL cell in Rows literals
var Null any = nil

// Table builds a table from literal rows; nil cells are NULL and every other
// cell is formatted with %v.
func Table(name string, columns []string, rows ...[]any) *domain.Table {
	data := make([]domain.Row, len(rows))
	for i, r := range rows {
		row := make(domain.Row, len(columns))
		for j := range columns {
			if j < len(r) && r[j] != nil {
				row[j] = domain.Text(fmt.Sprint(r[j]))
			}
		}
		data[i] = row
	}
	return domain.NewTable(name, columns, data)
}

// ScreeningColumns, ClassificationColumns and WaterValueColumns are the raw
// store schemas.
var (
	ScreeningColumns = []string{
		domain.ColID, domain.ColSourceDatabase, domain.ColTitle, domain.ColYear,
		domain.ColDecision, domain.ColExclusionReason,
	}
	ClassificationColumns = []string{
		domain.ColID, domain.ColTitle, domain.ColAuthors, domain.ColYear,
		domain.ColClassification, domain.ColMethod, domain.ColStudyRegion,
		domain.ColWaterValue, domain.ColNotes,
	}
	WaterValueColumns = []string{
		domain.ColWVID, domain.ColID, domain.ColPaperYear, domain.ColWVRaw,
		domain.ColUnits, domain.ColConversionFactor, domain.ColWVConverted,
		domain.ColPurpose, domain.ColCountry, domain.ColMethod, domain.ColMethodDetail,
		domain.ColWVMedianRaw, domain.ColSubState, domain.ColNotes,
	}
)

// SampleDataset returns a small raw dataset exercising the awkward cases:
// unparsable years, unmapped vocabulary, a referential violation, a
// conversion mismatch and a non-positive value.
func SampleDataset() *domain.Dataset {
	return &domain.Dataset{
		Screening: Table(domain.TableScreening, ScreeningColumns,
			[]any{"S1", "Scopus", "Water values in hydropower", "1998", "Include", ""},
			[]any{"S2", "Web of Science", "SDDP for reservoirs", "2015", "Include", ""},
			[]any{"S3", "Scopus", "Irrigation pricing", "2021.0", "Exclude", "Out of scope"},
			[]any{"S4", "Web of Science", "Unknown year paper", "n/a", "Exclude", "Duplicate"},
			[]any{"S5", "Scopus", "Urban water", "2010", "include", ""},
			[]any{"S6", "Scopus", Null, Null, "Exclude", "No full text"},
		),
		Classification: Table(domain.TableClassification, ClassificationColumns,
			[]any{"P1", "Water values in hydropower", "Smith", "1998", "A", "SDP", "Norway", "12.5 EUR/MWh", ""},
			[]any{"P2", "SDDP for reservoirs", "Lee", "2015", "B", "SDDP", "Brazil", "yes", Null},
			[]any{"P3", "Hydro-economic model", "Garcia", "2016", "C", "Econ-Engi", "Spain", Null, ""},
			[]any{"P4", "LP scheduling", "Chen", "2017", "A", "LP", "norway ", "", ""},
			[]any{"P5", "Synthetic case", "Kim", "2021", "G", "milp ", "Synthetic", "x", ""},
			[]any{"P6", "Theory paper", "Ng", "n/a", "R", "Fuzzy logic", Null, Null, Null},
		),
		WaterValues: Table(domain.TableWaterValues, WaterValueColumns,
			[]any{"WV1", "P1", "1998", "10", "EUR/MWh", "1", "10", "Hydropower", "Norway", "SDP", "SDP-1", "9", "", ""},
			[]any{"WV2", "P1", "1998", "20", "EUR/MWh", "1", "20", "Hydropower", "Norway", "SDP", "SDP-1", Null, "", ""},
			[]any{"WV3", "P2", "2015", "100", "BRL/MWh", "0.2", "20", "Hydropower", "Brazil", "SDDP", "SDDP-2", Null, "", ""},
			[]any{"WV4", "P3", "2016", "0.5", "EUR/m3", "1", "0.5", "Agriculture", "Spain", "Econ-Engi", "CGE", "0.4", "", ""},
			[]any{"WV5", "P3", "2016", "-3", "EUR/m3", "1", "-3", "irrigation", "Spain", "Econ-Engi", "CGE", Null, "", ""},
			[]any{"WV6", "P4", "2017", "5", "USD/MWh", "0.9", "4.5", "Recreation", "Norway", "LP", "LP-1", Null, "", ""},
			[]any{"WV7", "P9", "2019", "7", "usd/mwh", "1", "8", "Urban", "USA", "LP", "LP-1", Null, "", ""},
		),
	}
}

// WriteStore creates a migrated store in dir holding ds and returns its path.
func WriteStore(t testing.TB, dir string, ds *domain.Dataset) string {
	t.Helper()

	path := filepath.Join(dir, "water_value_database.db")
	_, err := store.Migrate(context.Background(), path)
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range ds.Tables() {
		InsertTable(t, db, table)
	}
	return path
}

// InsertTable appends the rows of table to the same-named store table.
func InsertTable(t testing.TB, db *sql.DB, table *domain.Table) {
	t.Helper()

	quoted := make([]string, len(table.Columns))
	marks := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		quoted[i] = `"` + c + `"`
		marks[i] = "?"
	}
	query := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
		table.Name, strings.Join(quoted, ", "), strings.Join(marks, ", "))

	for _, row := range table.Rows {
		args := make([]any, len(row))
		for i, v := range row {
			if v.Valid {
				args[i] = v.String
			}
		}
		_, err := db.Exec(query, args...)
		require.NoError(t, err)
	}
}
