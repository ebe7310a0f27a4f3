package tabnet

import (
	"fmt"
	"strconv"
	"strings"

	"oncopainel-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
)

// the literal marker the upstream prints instead of a chart when a
// tabulation matched zero records
const noDataSentinel = "Nenhum registro"

// the upstream's grand-total row label, leading space included
const upstreamTotalLabel = " Total"

// the key this package exposes the grand total under
const TotalLabel = "Total"

// ChartRow is one row of the chart-initialization call embedded in a
// tabulation response.
type ChartRow struct {
	// 1-5 for region rows, 0 otherwise
	RegionCode int
	Label      string
	Value      float64
}

// response pages are served as ISO-8859-1
func decodeBody(body []byte) (string, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode response charset: %w", err)
	}
	return string(decoded), nil
}

func isNoData(page string) bool {
	return strings.Contains(page, noDataSentinel)
}

// extractChartData walks the page's script elements for the
// `data.addRows([...])` call and returns its literal array argument
// verbatim.
func extractChartData(page string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", false
	}

	for _, script := range doc.Find("script").Nodes {
		text := htmlutil.GetText(script)
		call := strings.Index(text, "data.addRows(")
		if call < 0 {
			continue
		}
		open := strings.IndexByte(text[call:], '[')
		if open < 0 {
			continue
		}
		body := text[call+open+1:]

		raw, ok := scanBalanced(body)
		if !ok {
			continue
		}
		return strings.TrimSpace(raw), true
	}

	return "", false
}

// scans until the ']' matching the already-consumed opening '[',
// skipping over brackets inside string literals
func scanBalanced(s string) (string, bool) {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			end := skipString(s, i)
			if end < 0 {
				return "", false
			}
			i = end
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[:i], true
			}
		}
	}
	return "", false
}

// returns the index of the closing quote, respecting backslash
// escapes, or -1
func skipString(s string, start int) int {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}

// parseChartRows scans a raw chart-data fragment into rows. The row
// grammar is `['<label>', {v: <number>, f: '<formatted>'}],` where
// region labels look like "1 Região Norte" and the grand total is the
// distinguished " Total" row.
func parseChartRows(fragment string) ([]ChartRow, error) {
	s := &scanner{src: fragment}
	var rows []ChartRow

	for {
		s.skipSpace()
		if s.eof() {
			return rows, nil
		}
		if !s.consume('[') {
			return nil, s.errorf("expected '['")
		}

		s.skipSpace()
		label, err := s.scanString()
		if err != nil {
			return nil, err
		}

		s.skipSpace()
		if !s.consume(',') {
			return nil, s.errorf("expected ',' after row label")
		}
		s.skipSpace()
		if !s.consume('{') {
			return nil, s.errorf("expected '{'")
		}
		s.skipSpace()
		if !s.consumeWord("v") {
			return nil, s.errorf("expected 'v' key")
		}
		s.skipSpace()
		if !s.consume(':') {
			return nil, s.errorf("expected ':' after 'v'")
		}
		s.skipSpace()
		value, err := s.scanNumber()
		if err != nil {
			return nil, err
		}

		// the rest of the object (formatted value etc.) is noise
		if err := s.skipObject(); err != nil {
			return nil, err
		}
		s.skipSpace()
		if !s.consume(']') {
			return nil, s.errorf("expected ']' closing row")
		}
		s.skipSpace()
		s.consume(',')

		rows = append(rows, makeRow(label, value))
	}
}

func makeRow(label string, value float64) ChartRow {
	if label == upstreamTotalLabel || strings.TrimSpace(label) == TotalLabel {
		return ChartRow{Label: TotalLabel, Value: value}
	}

	// "<digit code> Região <name>", the upstream sometimes drops the
	// accent
	parts := strings.SplitN(label, " ", 3)
	if len(parts) == 3 && (parts[1] == "Região" || parts[1] == "Regiao") {
		code, err := strconv.Atoi(parts[0])
		if err == nil {
			return ChartRow{RegionCode: code, Label: parts[2], Value: value}
		}
	}

	return ChartRow{Label: label, Value: value}
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("chart fragment offset %d: %s", s.pos, fmt.Sprintf(format, args...))
}

func (s *scanner) skipSpace() {
	for !s.eof() {
		switch s.src[s.pos] {
		case ' ', '\t', '\r', '\n':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) consume(c byte) bool {
	if s.eof() || s.src[s.pos] != c {
		return false
	}
	s.pos++
	return true
}

func (s *scanner) consumeWord(word string) bool {
	if !strings.HasPrefix(s.src[s.pos:], word) {
		return false
	}
	s.pos += len(word)
	return true
}

func (s *scanner) scanString() (string, error) {
	if s.eof() || (s.src[s.pos] != '\'' && s.src[s.pos] != '"') {
		return "", s.errorf("expected string literal")
	}
	end := skipString(s.src, s.pos)
	if end < 0 {
		return "", s.errorf("unterminated string literal")
	}
	out := s.src[s.pos+1 : end]
	s.pos = end + 1
	return out, nil
}

func (s *scanner) scanNumber() (float64, error) {
	start := s.pos
	for !s.eof() {
		c := s.src[s.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			s.pos++
			continue
		}
		break
	}
	if start == s.pos {
		return 0, s.errorf("expected number")
	}
	v, err := strconv.ParseFloat(s.src[start:s.pos], 64)
	if err != nil {
		return 0, s.errorf("bad number %q", s.src[start:s.pos])
	}
	return v, nil
}

// consumes the remainder of a `{...}` object whose opening brace was
// already consumed
func (s *scanner) skipObject() error {
	depth := 1
	for !s.eof() {
		switch s.src[s.pos] {
		case '\'', '"':
			end := skipString(s.src, s.pos)
			if end < 0 {
				return s.errorf("unterminated string inside object")
			}
			s.pos = end + 1
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				s.pos++
				return nil
			}
		}
		s.pos++
	}
	return s.errorf("unterminated object")
}
