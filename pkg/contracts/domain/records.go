package domain

import (
	"math"
	"strconv"
	"strings"
)

// Raw column names of the screening table.
const (
	ColID              = "ID"
	ColSourceDatabase  = "Source_database"
	ColTitle           = "Title"
	ColYear            = "Year"
	ColDecision        = "Decision"
	ColExclusionReason = "Exclusion_reason"
)

// Raw column names of the classification table.
const (
	ColAuthors        = "Authors"
	ColClassification = "Classification"
	ColMethod         = "Method"
	ColStudyRegion    = "Study_region"
	ColWaterValue     = "Water_value"
	ColNotes          = "Notes"
)

// Raw column names of the water_values table.
const (
	ColWVID             = "WV_ID"
	ColPaperYear        = "Paper_year"
	ColWVRaw            = "WV_raw"
	ColUnits            = "units"
	ColConversionFactor = "Conversion_factor"
	ColWVConverted      = "WV_converted"
	ColPurpose          = "Purpose"
	ColCountry          = "Country"
	ColMethodDetail     = "Method_detail"
	ColWVMedianRaw      = "WV_median_raw"
	ColSubState         = "Sub_state"
)

// Derived column names.
const (
	ColYearNumeric          = "Year_numeric"
	ColDecade               = "Decade"
	ColYearRange            = "Year_range"
	ColIncluded             = "Included"
	ColHasWaterValue        = "Has_water_value"
	ColMethodClean          = "Method_clean"
	ColMethodCategory       = "Method_category"
	ColStudyRegionClean     = "Study_region_clean"
	ColStudyRegionContinent = "Study_region_continent"
	ColCountryClean         = "Country_clean"
	ColContinent            = "Continent"
	ColPurposeClean         = "Purpose_clean"
	ColUnitsClean           = "units_clean"
	ColWVRawNumeric         = "WV_raw_numeric"
	ColWVConvertedNumeric   = "WV_converted_numeric"
	ColFactorNumeric        = "Conversion_factor_numeric"
)

// DerivedColumns lists every column the derivation stage adds. Columns with
// these names found in the store are recomputed, and the completeness figure
// leaves them out.
var DerivedColumns = []string{
	ColYearNumeric, ColDecade, ColYearRange, ColIncluded, ColHasWaterValue,
	ColMethodClean, ColMethodCategory, ColStudyRegionClean, ColStudyRegionContinent,
	ColCountryClean, ColContinent, ColPurposeClean, ColUnitsClean,
	ColWVRawNumeric, ColWVConvertedNumeric, ColFactorNumeric,
}

// ScreeningRecord is one search result from the systematic review.
type ScreeningRecord struct {
	ID              string `json:"id" validate:"required"`
	SourceDatabase  string `json:"source_database"`
	Title           string `json:"title"`
	Year            string `json:"year"`
	Decision        string `json:"decision"`
	ExclusionReason string `json:"exclusion_reason,omitempty"`
	Included        bool   `json:"included"`
}

// ClassificationRecord is one included paper. It is the join target for
// paper identity: every WaterValueObservation.PaperID must match one ID here.
type ClassificationRecord struct {
	ID             string `json:"id" validate:"required"`
	Title          string `json:"title"`
	Authors        string `json:"authors"`
	Year           string `json:"year"`
	Classification string `json:"classification" validate:"required,oneof=A B C D E F G H R"`
	Method         string `json:"method"`
	StudyRegion    string `json:"study_region"`
	WaterValue     string `json:"water_value"`
	Notes          string `json:"notes,omitempty"`
}

// WaterValueObservation is one extracted numeric water value.
//
// ConvertedValue must equal RawValue * ConversionFactor within floating
// point tolerance, and ConversionFactor must be positive. Pointers are nil
// when the store cell is NULL or does not parse as a number.
type WaterValueObservation struct {
	WVID             string   `json:"wv_id" validate:"required"`
	PaperID          string   `json:"paper_id" validate:"required"`
	PaperYear        string   `json:"paper_year"`
	RawValue         *float64 `json:"raw_value" validate:"required"`
	Units            string   `json:"units"`
	ConversionFactor *float64 `json:"conversion_factor" validate:"required,gt=0"`
	ConvertedValue   *float64 `json:"converted_value" validate:"required"`
	Purpose          string   `json:"purpose"`
	Country          string   `json:"country"`
	Method           string   `json:"method"`
	MethodDetail     string   `json:"method_detail"`
	MedianRaw        *float64 `json:"median_raw,omitempty"`
	SubState         string   `json:"sub_state,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// ScreeningRecords decodes the screening table into typed records.
// Columns the table lacks decode as empty fields.
func ScreeningRecords(t *Table) []ScreeningRecord {
	get := accessor(t)
	out := make([]ScreeningRecord, t.Len())
	for i, r := range t.Rows {
		out[i] = ScreeningRecord{
			ID:              get(r, ColID),
			SourceDatabase:  get(r, ColSourceDatabase),
			Title:           get(r, ColTitle),
			Year:            get(r, ColYear),
			Decision:        get(r, ColDecision),
			ExclusionReason: get(r, ColExclusionReason),
			Included:        IsIncludedDecision(get(r, ColDecision)),
		}
	}
	return out
}

// ClassificationRecords decodes the classification table into typed records.
func ClassificationRecords(t *Table) []ClassificationRecord {
	get := accessor(t)
	out := make([]ClassificationRecord, t.Len())
	for i, r := range t.Rows {
		out[i] = ClassificationRecord{
			ID:             get(r, ColID),
			Title:          get(r, ColTitle),
			Authors:        get(r, ColAuthors),
			Year:           get(r, ColYear),
			Classification: get(r, ColClassification),
			Method:         get(r, ColMethod),
			StudyRegion:    get(r, ColStudyRegion),
			WaterValue:     get(r, ColWaterValue),
			Notes:          get(r, ColNotes),
		}
	}
	return out
}

// WaterValueObservations decodes the water_values table into typed records.
func WaterValueObservations(t *Table) []WaterValueObservation {
	get := accessor(t)
	out := make([]WaterValueObservation, t.Len())
	for i, r := range t.Rows {
		out[i] = WaterValueObservation{
			WVID:             get(r, ColWVID),
			PaperID:          get(r, ColID),
			PaperYear:        get(r, ColPaperYear),
			RawValue:         ParseNumber(get(r, ColWVRaw)),
			Units:            get(r, ColUnits),
			ConversionFactor: ParseNumber(get(r, ColConversionFactor)),
			ConvertedValue:   ParseNumber(get(r, ColWVConverted)),
			Purpose:          get(r, ColPurpose),
			Country:          get(r, ColCountry),
			Method:           get(r, ColMethod),
			MethodDetail:     get(r, ColMethodDetail),
			MedianRaw:        ParseNumber(get(r, ColWVMedianRaw)),
			SubState:         get(r, ColSubState),
			Notes:            get(r, ColNotes),
		}
	}
	return out
}

// ParseNumber parses a finite decimal number, returning nil for blanks and
// garbage. NaN, infinities and thousands separators are not accepted.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// IsIncludedDecision reports whether a screening decision admits the paper.
func IsIncludedDecision(decision string) bool {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "include", "included", "yes", "y":
		return true
	}
	return false
}

func accessor(t *Table) func(Row, string) string {
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c] = i
	}
	return func(r Row, col string) string {
		idx, ok := index[col]
		if !ok || idx >= len(r) {
			return ""
		}
		return r[idx].Trimmed()
	}
}
