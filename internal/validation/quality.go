package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// QualityCheck names the rule a QualityIssue violates
type QualityCheck string

const (
	CheckReferential QualityCheck = "referential"
	CheckConversion  QualityCheck = "conversion"
	CheckValidation  QualityCheck = "validation"
)

// QualityIssue is one row of the data quality report
type QualityIssue struct {
	Table    string       `json:"table"`
	Row      int          `json:"row"`
	RecordID string       `json:"record_id"`
	Check    QualityCheck `json:"check"`
	Field    string       `json:"field"`
	Value    string       `json:"value"`
	Message  string       `json:"message"`
}

// QualityHeaders is the header row of data_quality.csv
var QualityHeaders = []string{"Table", "Row", "Record_ID", "Check", "Field", "Value", "Message"}

// Record returns the issue as a CSV record
func (q QualityIssue) Record() []string {
	return []string{q.Table, strconv.Itoa(q.Row), q.RecordID, string(q.Check), q.Field, q.Value, q.Message}
}

// QualityChecker inspects the source tables for referential and conversion
// violations. Violations are reported, never fatal.
type QualityChecker struct {
	tolerance float64
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewQualityChecker creates a checker. tolerance is the relative error
// allowed between WV_converted and WV_raw × Conversion_factor.
func NewQualityChecker(tolerance float64, logger *slog.Logger) *QualityChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityChecker{
		tolerance: tolerance,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Check runs every rule over ds. Issues are ordered by table, then row.
func (c *QualityChecker) Check(ctx context.Context, ds *domain.Dataset) []QualityIssue {
	var issues []QualityIssue

	if ds.Screening != nil {
		for i, rec := range domain.ScreeningRecords(ds.Screening) {
			issues = append(issues, c.structIssues(domain.TableScreening, i+1, rec.ID, rec)...)
		}
	}

	paperIDs := make(map[string]struct{})
	if ds.Classification != nil {
		for i, rec := range domain.ClassificationRecords(ds.Classification) {
			paperIDs[rec.ID] = struct{}{}
			issues = append(issues, c.structIssues(domain.TableClassification, i+1, rec.ID, rec)...)
		}
	}

	if ds.WaterValues != nil {
		for i, obs := range domain.WaterValueObservations(ds.WaterValues) {
			row := i + 1
			issues = append(issues, c.structIssues(domain.TableWaterValues, row, obs.WVID, obs)...)

			if _, ok := paperIDs[obs.PaperID]; obs.PaperID != "" && ds.Classification != nil && !ok {
				issues = append(issues, QualityIssue{
					Table:    domain.TableWaterValues,
					Row:      row,
					RecordID: obs.WVID,
					Check:    CheckReferential,
					Field:    domain.ColID,
					Value:    obs.PaperID,
					Message:  "paper ID has no classification record",
				})
			}

			if issue, ok := c.conversionIssue(obs); ok {
				issue.Row = row
				issues = append(issues, issue)
			}
		}
	}

	counts := make(map[QualityCheck]int)
	for _, is := range issues {
		counts[is.Check]++
	}
	if len(issues) > 0 {
		c.logger.WarnContext(ctx, "Data quality violations found",
			slog.Int("referential", counts[CheckReferential]),
			slog.Int("conversion", counts[CheckConversion]),
			slog.Int("validation", counts[CheckValidation]))
	}
	for _, is := range issues {
		if is.Check == CheckReferential {
			c.logger.WarnContext(ctx, "Observation references unknown paper",
				slog.String("wv_id", is.RecordID),
				slog.String("paper_id", is.Value))
		}
	}

	return issues
}

// ConversionHolds reports whether converted equals raw × factor within a
// tolerance relative to the larger of 1 and |raw × factor|. A non-positive
// factor never holds.
func ConversionHolds(raw, factor, converted, tolerance float64) bool {
	if factor <= 0 {
		return false
	}
	expected := raw * factor
	return math.Abs(converted-expected) < tolerance*math.Max(1, math.Abs(expected))
}

func (c *QualityChecker) conversionIssue(obs domain.WaterValueObservation) (QualityIssue, bool) {
	if obs.RawValue == nil || obs.ConversionFactor == nil || obs.ConvertedValue == nil {
		return QualityIssue{}, false
	}
	raw, factor, converted := *obs.RawValue, *obs.ConversionFactor, *obs.ConvertedValue
	if ConversionHolds(raw, factor, converted, c.tolerance) {
		return QualityIssue{}, false
	}

	issue := QualityIssue{
		Table:    domain.TableWaterValues,
		RecordID: obs.WVID,
		Check:    CheckConversion,
	}
	if factor <= 0 {
		issue.Field = domain.ColConversionFactor
		issue.Value = strconv.FormatFloat(factor, 'f', -1, 64)
		issue.Message = "conversion factor must be positive"
		return issue, true
	}
	issue.Field = domain.ColWVConverted
	issue.Value = strconv.FormatFloat(converted, 'f', -1, 64)
	issue.Message = fmt.Sprintf("expected %s (%s × %s)",
		strconv.FormatFloat(raw*factor, 'g', 10, 64),
		strconv.FormatFloat(raw, 'f', -1, 64),
		strconv.FormatFloat(factor, 'f', -1, 64))
	return issue, true
}

// structIssues runs the validator struct tags of a typed record
func (c *QualityChecker) structIssues(table string, row int, id string, rec any) []QualityIssue {
	err := c.validate.Struct(rec)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []QualityIssue{{
			Table: table, Row: row, RecordID: id, Check: CheckValidation, Message: err.Error(),
		}}
	}

	var issues []QualityIssue
	for _, fe := range fieldErrs {
		// a non-positive factor is reported by the conversion check
		if fe.Field() == "ConversionFactor" && fe.Tag() == "gt" {
			continue
		}
		issues = append(issues, QualityIssue{
			Table:    table,
			Row:      row,
			RecordID: id,
			Check:    CheckValidation,
			Field:    fe.Field(),
			Value:    fmt.Sprint(fieldValue(fe.Value())),
			Message:  fmt.Sprintf("failed %q rule", ruleName(fe)),
		})
	}
	return issues
}

func ruleName(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}

func fieldValue(v any) any {
	if p, ok := v.(*float64); ok {
		if p == nil {
			return ""
		}
		return *p
	}
	return v
}
