package tabnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const fixtureRows = `['1 Região Norte', {v: 10, f: '10'}],
['2 Região Nordeste', {v: 20, f: '20'}],
['3 Região Sudeste', {v: 30, f: '30'}],
['4 Região Sul', {v: 15, f: '15'}],
['5 Região Centro-Oeste', {v: 5, f: '5'}],
[' Total', {v: 80, f: '80'}]`

const fixturePage = `<html><head><title>TabNet</title></head><body>
<script type="text/javascript">
  function drawChart() {
    var data = new google.visualization.DataTable();
    data.addColumn('string', 'Categoria');
    data.addColumn('number', 'Casos');
    data.addRows([` + fixtureRows + `]);
    var chart = new google.visualization.ColumnChart(document.getElementById('chart_div'));
    chart.draw(data, options);
  }
</script>
<div id="chart_div"></div>
</body></html>`

func TestExtractChartData(t *testing.T) {
	raw, ok := extractChartData(fixturePage)
	require.True(t, ok)
	require.Equal(t, fixtureRows, raw)
}

func TestExtractChartDataMissing(t *testing.T) {
	_, ok := extractChartData("<html><body><p>relatório</p></body></html>")
	require.False(t, ok)
}

func TestParseChartRows(t *testing.T) {
	rows, err := parseChartRows(fixtureRows)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	require.Equal(t, ChartRow{RegionCode: 1, Label: "Norte", Value: 10}, rows[0])
	require.Equal(t, ChartRow{RegionCode: 5, Label: "Centro-Oeste", Value: 5}, rows[4])
	require.Equal(t, ChartRow{Label: "Total", Value: 80}, rows[5])
}

func TestParseChartRowsUnaccented(t *testing.T) {
	rows, err := parseChartRows(`['3 Regiao Sudeste', {v: 1234.0, f: '1.234'}]`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 3, rows[0].RegionCode)
	require.Equal(t, "Sudeste", rows[0].Label)
	require.Equal(t, 1234.0, rows[0].Value)
}

func TestParseChartRowsNonRegionLabel(t *testing.T) {
	rows, err := parseChartRows(`["25 a 29 anos", {v: 42}]`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 0, rows[0].RegionCode)
	require.Equal(t, "25 a 29 anos", rows[0].Label)
	require.Equal(t, 42.0, rows[0].Value)
}

func TestParseChartRowsEmpty(t *testing.T) {
	rows, err := parseChartRows("")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestParseChartRowsGarbage(t *testing.T) {
	_, err := parseChartRows(`['Norte', broken`)
	require.Error(t, err)
}

func TestNoDataSentinel(t *testing.T) {
	require.True(t, isNoData("<html><body>Nenhum registro encontrado</body></html>"))
	require.False(t, isNoData(fixturePage))
}

func TestFragmentRows(t *testing.T) {
	frag := &Fragment{Raw: fixtureRows}
	rows, err := frag.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 6)
}

func TestFormatCount(t *testing.T) {
	require.Equal(t, "5", formatCount(5))
	require.Equal(t, "80", formatCount(80))
	require.Equal(t, "345", formatCount(345))
	require.Equal(t, "1.234", formatCount(1234))
	require.Equal(t, "12.345", formatCount(12345))
	require.Equal(t, "1.234.567", formatCount(1234567))
}

func TestDecodeBody(t *testing.T) {
	// "Região" in latin-1 bytes
	page, err := decodeBody([]byte{'R', 'e', 'g', 'i', 0xE3, 'o'})
	require.NoError(t, err)
	require.Equal(t, "Região", page)
}
