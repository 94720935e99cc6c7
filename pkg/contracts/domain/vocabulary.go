package domain

// NotSpecified is the bucket label for missing categorical values. Count
// tables always place it last.
const NotSpecified = "Not specified"

// SyntheticRegion marks studies on synthetic or theoretical systems.
const SyntheticRegion = "Synthetic/Theoretical"

// CategoryOrder is the fixed display order of classification categories.
var CategoryOrder = []string{"A", "B", "C", "D", "E", "F", "G", "H", "R"}

// CategoryNames maps a classification letter to its published name.
var CategoryNames = map[string]string{
	"A": "Hydropower scheduling and water values",
	"B": "Stochastic programming for hydropower",
	"C": "Hydro-economic modelling",
	"D": "Irrigation and agricultural water value",
	"E": "Urban and municipal water value",
	"F": "Environmental and ecological water value",
	"G": "Multi-purpose reservoir operation",
	"H": "Water markets and pricing",
	"R": "Review / Other",
}

// MethodOrder is the fixed display order of cleaned method labels.
var MethodOrder = []string{"LP", "MILP", "SDP", "SDDP", "Econ-Engi", "Other", "Not available"}

// Method categories assigned to cleaned methods.
const (
	MethodCategoryDeterministic = "Deterministic optimization"
	MethodCategoryStochastic    = "Stochastic optimization"
	MethodCategoryEconomic      = "Economic"
)

// MethodColors and PurposeColors are the fixed chart palettes.
var MethodColors = map[string]string{
	"LP":            "#1f77b4",
	"MILP":          "#ff7f0e",
	"SDP":           "#2ca02c",
	"SDDP":          "#d62728",
	"Econ-Engi":     "#9467bd",
	"Other":         "#8c564b",
	"Not available": "#c7c7c7",
}

var PurposeColors = map[string]string{
	"Hydropower":      "#1f77b4",
	"Agriculture":     "#2ca02c",
	"Urban/Municipal": "#ff7f0e",
	"Environmental":   "#17becf",
	"Mixed":           "#9467bd",
	"Industrial":      "#8c564b",
	"Social/Economic": "#e377c2",
}

// YearRangeLabels are the 5-year publication bins, in chronological order.
var YearRangeLabels = []string{"Pre-2000", "2000–2004", "2005–2009", "2010–2014", "2015–2019", "2020–2025"}
