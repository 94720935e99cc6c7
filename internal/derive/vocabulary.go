package derive

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// Vocabulary holds the controlled vocabularies used to normalize free-text
// categorical fields. Lookup keys are compared case- and
// whitespace-insensitively.
type Vocabulary struct {
	Methods          map[string]string `yaml:"methods"`
	MethodCategories map[string]string `yaml:"method_categories"`
	Regions          map[string]string `yaml:"regions"`
	Continents       map[string]string `yaml:"continents"`
	Purposes         map[string]string `yaml:"purposes"`
	Units            map[string]string `yaml:"units"`
}

// NormalizeKey lowercases s and collapses internal whitespace.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

var countriesByContinent = map[string][]string{
	"Europe": {
		"Austria", "Belgium", "Denmark", "Finland", "France", "Germany", "Greece",
		"Iceland", "Italy", "Netherlands", "Norway", "Portugal", "Spain", "Sweden",
		"Switzerland", "United Kingdom",
	},
	"Asia": {
		"China", "India", "Iran", "Japan", "Nepal", "Pakistan", "Turkey", "Vietnam",
	},
	"Africa": {
		"Egypt", "Ethiopia", "Morocco", "South Africa",
	},
	"North America": {
		"Canada", "Mexico", "United States",
	},
	"South America": {
		"Argentina", "Brazil", "Chile", "Colombia", "Ecuador", "Peru",
	},
	"Oceania": {
		"Australia", "New Zealand",
	},
}

var regionAliases = map[string]string{
	"usa":                        "United States",
	"us":                         "United States",
	"u.s.":                       "United States",
	"u.s.a.":                     "United States",
	"united states of america":   "United States",
	"uk":                         "United Kingdom",
	"great britain":              "United Kingdom",
	"england":                    "United Kingdom",
	"iran (islamic republic of)": "Iran",
	"viet nam":                   "Vietnam",
	"türkiye":                    "Turkey",
	"synthetic":                  domain.SyntheticRegion,
	"theoretical":                domain.SyntheticRegion,
	"hypothetical":               domain.SyntheticRegion,
	"synthetic/theoretical":      domain.SyntheticRegion,
	"not specified":              domain.NotSpecified,
	"unspecified":                domain.NotSpecified,
	"n/a":                        domain.NotSpecified,
	"na":                         domain.NotSpecified,
	"none":                       domain.NotSpecified,
	"-":                          domain.NotSpecified,
}

// DefaultVocabulary returns the built-in vocabularies.
func DefaultVocabulary() *Vocabulary {
	v := &Vocabulary{
		Methods: map[string]string{
			"lp":                                  "LP",
			"linear programming":                  "LP",
			"milp":                                "MILP",
			"mixed-integer linear programming":    "MILP",
			"mixed integer linear programming":    "MILP",
			"sdp":                                 "SDP",
			"stochastic dynamic programming":      "SDP",
			"sddp":                                "SDDP",
			"stochastic dual dynamic programming": "SDDP",
			"econ-engi":                           "Econ-Engi",
			"econ engi":                           "Econ-Engi",
			"economic-engineering":                "Econ-Engi",
			"economic engineering":                "Econ-Engi",
			"other":                               "Other",
			"not available":                       "Not available",
			"n/a":                                 "Not available",
			"na":                                  "Not available",
		},
		MethodCategories: map[string]string{
			"LP":        domain.MethodCategoryDeterministic,
			"MILP":      domain.MethodCategoryDeterministic,
			"SDP":       domain.MethodCategoryStochastic,
			"SDDP":      domain.MethodCategoryStochastic,
			"Econ-Engi": domain.MethodCategoryEconomic,
		},
		Regions:    map[string]string{},
		Continents: map[string]string{},
		Purposes: map[string]string{
			"hydropower":      "Hydropower",
			"hydro":           "Hydropower",
			"energy":          "Hydropower",
			"agriculture":     "Agriculture",
			"agricultural":    "Agriculture",
			"irrigation":      "Agriculture",
			"urban/municipal": "Urban/Municipal",
			"urban":           "Urban/Municipal",
			"municipal":       "Urban/Municipal",
			"domestic":        "Urban/Municipal",
			"environmental":   "Environmental",
			"environment":     "Environmental",
			"ecological":      "Environmental",
			"mixed":           "Mixed",
			"multi-purpose":   "Mixed",
			"industrial":      "Industrial",
			"industry":        "Industrial",
			"social/economic": "Social/Economic",
			"socio-economic":  "Social/Economic",
		},
		Units: map[string]string{
			"eur/mwh":       "EUR/MWh",
			"€/mwh":         "EUR/MWh",
			"usd/mwh":       "USD/MWh",
			"$/mwh":         "USD/MWh",
			"nok/mwh":       "NOK/MWh",
			"brl/mwh":       "BRL/MWh",
			"eur/m3":        "EUR/m3",
			"€/m3":          "EUR/m3",
			"eur/m³":        "EUR/m3",
			"usd/m3":        "USD/m3",
			"$/m3":          "USD/m3",
			"usd/m³":        "USD/m3",
			"usd/af":        "USD/acre-ft",
			"$/af":          "USD/acre-ft",
			"usd/acre-foot": "USD/acre-ft",
			"usd/acre-ft":   "USD/acre-ft",
			"aud/ml":        "AUD/ML",
		},
	}

	for continent, countries := range countriesByContinent {
		for _, c := range countries {
			v.Regions[NormalizeKey(c)] = c
			v.Continents[c] = continent
		}
	}
	for alias, label := range regionAliases {
		v.Regions[alias] = label
	}
	v.Continents[domain.SyntheticRegion] = domain.SyntheticRegion
	v.Continents[domain.NotSpecified] = domain.NotSpecified

	return v
}

// LoadVocabulary returns the built-in vocabularies extended by the YAML file
// at path. Entries in the file override built-in entries with the same key.
// An empty path returns the defaults.
func LoadVocabulary(path string) (*Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}

	var overlay Vocabulary
	if err := yaml.UnmarshalStrict(data, &overlay); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("parse vocabulary file %s", path), err).
			WithContext("path", path)
	}

	mergeKeys(v.Methods, overlay.Methods)
	mergeKeys(v.Regions, overlay.Regions)
	mergeKeys(v.Purposes, overlay.Purposes)
	mergeKeys(v.Units, overlay.Units)
	mergeLabels(v.MethodCategories, overlay.MethodCategories)
	mergeLabels(v.Continents, overlay.Continents)

	return v, nil
}

// mergeKeys copies lookup entries, normalizing the raw-value keys
func mergeKeys(dst, src map[string]string) {
	for k, label := range src {
		dst[NormalizeKey(k)] = label
	}
}

// mergeLabels copies entries keyed by an already-clean label
func mergeLabels(dst, src map[string]string) {
	for k, label := range src {
		dst[strings.TrimSpace(k)] = label
	}
}

// Lookup maps a raw value through table. ok is false when the value has no
// entry, in which case raw is returned unchanged.
func Lookup(table map[string]string, raw string) (label string, ok bool) {
	label, ok = table[NormalizeKey(raw)]
	if !ok {
		return raw, false
	}
	return label, true
}

// MethodCategory returns the broad approach of a cleaned method; methods
// without a category keep their own label.
func (v *Vocabulary) MethodCategory(method string) string {
	if category, ok := v.MethodCategories[method]; ok {
		return category
	}
	return method
}

// Continent returns the continent of a cleaned region or country.
func (v *Vocabulary) Continent(region string) (string, bool) {
	continent, ok := v.Continents[region]
	return continent, ok
}
