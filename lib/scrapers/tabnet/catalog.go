package tabnet

import "fmt"

// Region is one of the five macro-regions the panel tabulates
// residence by.
type Region struct {
	Code int
	Name string
}

// ordered by the upstream's own region codes
var Regions = []Region{
	{1, "Norte"},
	{2, "Nordeste"},
	{3, "Sudeste"},
	{4, "Sul"},
	{5, "Centro-Oeste"},
}

func RegionName(code int) string {
	for _, r := range Regions {
		if r.Code == code {
			return r.Name
		}
	}
	return ""
}

func RegionNames() []string {
	names := make([]string, 0, len(Regions))
	for _, r := range Regions {
		names = append(names, r.Name)
	}
	return names
}

func isRegion(name string) bool {
	for _, r := range Regions {
		if r.Name == name {
			return true
		}
	}
	return false
}

// AgeGroup pairs a display label with the `label|range|level` filter
// value the upstream form expects for it.
type AgeGroup struct {
	Label  string
	Filter string
}

var AgeGroups = []AgeGroup{
	{"0 a 19 anos", "0 a 19 anos|000-019|3"},
	{"20 a 24 anos", "20 a 24 anos|020-024|3"},
	{"25 a 29 anos", "25 a 29 anos|025-029|3"},
	{"30 a 34 anos", "30 a 34 anos|030-034|3"},
	{"35 a 39 anos", "35 a 39 anos|035-039|3"},
	{"40 a 44 anos", "40 a 44 anos|040-044|3"},
	{"45 a 49 anos", "45 a 49 anos|045-049|3"},
	{"50 a 54 anos", "50 a 54 anos|050-054|3"},
	{"55 a 59 anos", "55 a 59 anos|055-059|3"},
	{"60 a 64 anos", "60 a 64 anos|060-064|3"},
	{"65 a 69 anos", "65 a 69 anos|065-069|3"},
	{"70 a 74 anos", "70 a 74 anos|070-074|3"},
	{"75 a 79 anos", "75 a 79 anos|075-079|3"},
	{"80 anos e mais", "80 anos e mais|080-999|3"},
}

func AgeGroupFilter(label string) (string, bool) {
	for _, g := range AgeGroups {
		if g.Label == label {
			return g.Filter, true
		}
	}
	return "", false
}

func AgeGroupLabels() []string {
	labels := make([]string, 0, len(AgeGroups))
	for _, g := range AgeGroups {
		labels = append(labels, g.Label)
	}
	return labels
}

// DiagnosisCodes lists the panel's detailed-diagnosis categories:
// ICD-10 C00-C97 (malignant neoplasms, with the gaps the
// classification itself has), D00-D09 (in situ) and D37-D48
// (uncertain or unknown behaviour).
var DiagnosisCodes = buildDiagnosisCodes()

func buildDiagnosisCodes() []string {
	var codes []string
	addRange := func(prefix string, from, to int) {
		for n := from; n <= to; n++ {
			codes = append(codes, fmt.Sprintf("%s%02d", prefix, n))
		}
	}

	addRange("C", 0, 26)
	addRange("C", 30, 34)
	addRange("C", 37, 41)
	addRange("C", 43, 49)
	addRange("C", 50, 58)
	addRange("C", 60, 85)
	codes = append(codes, "C88")
	addRange("C", 90, 97)
	addRange("D", 0, 7)
	codes = append(codes, "D09")
	addRange("D", 37, 48)

	return codes
}

// sex category filters in the upstream's own encoding
var sexFilters = map[string]string{
	"ALL": allCategories,
	"M":   "Masculino|M|1",
	"F":   "Feminino|F|1",
}
