// Package icd maps the panel's detailed diagnosis codes to
// human-readable ICD-10 category descriptions, used for dropdown
// labels and report output.
package icd

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"oncopainel-backend/lib/textutil"
)

//go:embed tipos.txt
var tiposTxt string

// `C00 – Descrição`, accepting both the en dash and a plain hyphen
var lineRegex = regexp.MustCompile(`^([CD]\d{2})\s+[–-]\s+(.+)$`)

var descriptions = parse(tiposTxt)

func parse(src string) map[string]string {
	out := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		groups := lineRegex.FindStringSubmatch(line)
		if len(groups) != 3 {
			continue
		}
		out[groups[1]] = groups[2]
	}
	return out
}

// Describe returns the description for an ICD-10 category code, or ""
// when the code isn't in the catalog.
func Describe(code string) string {
	return descriptions[strings.ToUpper(code)]
}

// Label renders the dropdown form of a code, e.g.
// "C50 – Neoplasia maligna da mama". Unknown codes render as just the
// code.
func Label(code string) string {
	code = strings.ToUpper(code)
	description := descriptions[code]
	if description == "" {
		return code
	}
	return fmt.Sprintf("%s – %s", code, description)
}

// Codes returns every cataloged code in ascending order.
func Codes() []string {
	codes := make([]string, 0, len(descriptions))
	for code := range descriptions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Search returns the codes whose description contains the given term,
// ignoring case and whitespace.
func Search(term string) []string {
	matcher := []string{textutil.NormalizeName(term)}

	var out []string
	for _, code := range Codes() {
		if textutil.MatchName(descriptions[code], matcher) {
			out = append(out, code)
		}
	}
	return out
}
