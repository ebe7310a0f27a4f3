package tabnet

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const allCategories = "TODAS_AS_CATEGORIAS__"

// the upstream form literally spells "Município" with a stray soft
// hyphen after the í, the wire bytes must reproduce it or the CGI
// drops the field
const municipioField = "Munic\u00ed\u00adpio"

type formField struct {
	name  string
	value string
}

// every query mode shares this field set and overrides at most two
// values: the sex category and one breakdown filter
func basePayload(year int, sexFilter string) []formField {
	return []formField{
		{"Linha", `Região - residência|SUBSTR(CO_MUNICIPIO_RESIDENCIA,1,1)|1|territorio\br_regiao.cnv`},
		{"Coluna", "--Não-Ativa--"},
		{"Incremento", "Casos|= count(*)"},
		{"PAno do diagnóstico", fmt.Sprintf("%d|%d|4", year, year)},
		{"XRegião - residência", allCategories},
		{"XRegião - diagnóstico", allCategories},
		{"XRegião - tratamento", allCategories},
		{"XUF da residência", allCategories},
		{"XUF do diagnóstico", allCategories},
		{"XUF do tratamento", allCategories},
		{"SRegião de Saude - residência", allCategories},
		{"SRegião de Saude - diagnóstico", allCategories},
		{"SRegião de Saude - tratamento", allCategories},
		{"S" + municipioField + " da residência", allCategories},
		{"S" + municipioField + " do diagnóstico", allCategories},
		{"S" + municipioField + " do tratamento", allCategories},
		{"XDiagnóstico", allCategories},
		{"XDiagnóstico Detalhado", allCategories},
		{"XSexo", sexFilter},
		{"XFaixa etária", allCategories},
		{"XIdade", allCategories},
		{"XMês/Ano do diagnóstico", allCategories},
		{"SAno do tratamento", allCategories},
		{"XMês/Ano do tratamento", allCategories},
		{"XModalidade Terapêutica", allCategories},
		{"XEstadiamento", allCategories},
		{"XTempo Tratamento", allCategories},
		{"XTempo Tratamento (detalhado)", allCategories},
		{"XEstabelecimento de tratamento", allCategories},
		{"XEstabelecimento diagnóstico", allCategories},
		{"nomedef", "PAINEL_ONCO/PAINEL_ONCOLOGIABR.def"},
		{"grafico", ""},
	}
}

func setField(fields []formField, name, value string) []formField {
	for i := range fields {
		if fields[i].name == name {
			fields[i].value = value
			break
		}
	}
	return fields
}

func regionsPayload(year int, sexFilter string) string {
	return encodeForm(basePayload(year, sexFilter))
}

func ageGroupPayload(year int, ageFilter, sexFilter string) string {
	fields := basePayload(year, sexFilter)
	return encodeForm(setField(fields, "XFaixa etária", ageFilter))
}

func diagnosisPayload(year int, code, sexFilter string) string {
	fields := basePayload(year, sexFilter)
	// the CGI matches on the `label|code|level` shape only, the label
	// part may be anything as long as the shape is intact
	filter := fmt.Sprintf("%s|%s|3", code, code)
	return encodeForm(setField(fields, "XDiagnóstico Detalhado", filter))
}

func encodeForm(fields []formField) string {
	var out strings.Builder
	for i, f := range fields {
		if i > 0 {
			out.WriteByte('&')
		}
		out.WriteString(escapeLatin1(f.name))
		out.WriteByte('=')
		out.WriteString(escapeLatin1(f.value))
	}
	return out.String()
}

var latin1Encoder = encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())

// percent-escapes `s` the way a browser submits an ISO-8859-1 form:
// the string is converted to latin-1 bytes first, spaces become '+'
// and everything outside [A-Za-z0-9*\-._] becomes %XX of the latin-1
// byte (not of the utf-8 bytes, which is what url.Values would give)
func escapeLatin1(s string) string {
	encoded, _ := latin1Encoder.String(s)

	var out strings.Builder
	for i := 0; i < len(encoded); i++ {
		b := encoded[i]
		switch {
		case b == ' ':
			out.WriteByte('+')
		case b >= 'A' && b <= 'Z',
			b >= 'a' && b <= 'z',
			b >= '0' && b <= '9',
			b == '*', b == '-', b == '.', b == '_':
			out.WriteByte(b)
		default:
			fmt.Fprintf(&out, "%%%02X", b)
		}
	}
	return out.String()
}
