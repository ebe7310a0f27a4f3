package tabnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"oncopainel-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func latin1(s string) []byte {
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return encoded
}

func chartPageFor(rows string) []byte {
	return latin1(`<html><body><div id="chart_div"></div><script>
  var data = new google.visualization.DataTable();
  data.addRows([` + rows + `]);
</script></body></html>`)
}

var regionValuesBySex = map[string][5]float64{
	"ALL": {10, 20, 30, 15, 5},
	"M":   {6, 12, 18, 9, 3},
	"F":   {4, 8, 12, 6, 2},
}

func regionRows(values [5]float64) string {
	var rows []string
	var total float64
	for i, v := range values {
		rows = append(rows, fmt.Sprintf(
			"['%d Região %s', {v: %g, f: '%g'}]",
			Regions[i].Code, Regions[i].Name, v, v,
		))
		total += v
	}
	rows = append(rows, fmt.Sprintf("[' Total', {v: %g, f: '%g'}]", total, total))
	return strings.Join(rows, ",\n")
}

// mock of the tabulation CGI: hands out a session cookie on the
// def-file page and answers form POSTs with chart pages derived
// deterministically from the payload
type tabnetHandler struct {
	mu         sync.Mutex
	handshakes int
	posts      []string

	// payload marker that triggers a 500
	failMarker string
	noData     bool
}

func (h *tabnetHandler) postCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.posts)
}

func (h *tabnetHandler) handshakeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handshakes
}

func (h *tabnetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case handshakePath:
		h.mu.Lock()
		h.handshakes++
		h.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "TS014", Value: "session", Path: "/"})
		w.Write(latin1("<html><body>painel</body></html>"))

	case queryPath:
		if _, err := r.Cookie("TS014"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		body, _ := io.ReadAll(r.Body)
		payload := string(body)
		h.mu.Lock()
		h.posts = append(h.posts, payload)
		h.mu.Unlock()

		if h.failMarker != "" && strings.Contains(payload, h.failMarker) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if h.noData {
			w.Write(latin1("<html><body>Nenhum registro encontrado</body></html>"))
			return
		}

		regionTotals := strings.Contains(payload, "XFaixa+et%E1ria=TODAS_AS_CATEGORIAS__") &&
			strings.Contains(payload, "XDiagn%F3stico+Detalhado=TODAS_AS_CATEGORIAS__")
		if regionTotals {
			w.Write(chartPageFor(regionRows(regionValuesBySex[payloadSex(payload)])))
			return
		}

		// batch sub-query: answer with a value derived from the
		// payload so identical payloads always get identical pages
		var sum int
		for i := 0; i < len(payload); i++ {
			sum += int(payload[i])
		}
		w.Write(chartPageFor(fmt.Sprintf("['1 Região Norte', {v: %d, f: '%d'}]", sum%9973, sum%9973)))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func payloadSex(payload string) string {
	if strings.Contains(payload, "XSexo=Masculino") {
		return "M"
	}
	if strings.Contains(payload, "XSexo=Feminino") {
		return "F"
	}
	return "ALL"
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{BaseUrl: srv.URL})
	require.NoError(t, err)
	return client
}

func TestQueryRegionTotals(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tabnet")
	defer cleanup()

	h := &tabnetHandler{}
	client := newTestClient(t, h)

	res, err := client.Query(context.Background(), Query{Year: 2021})
	require.NoError(t, err)
	require.Equal(t, ModeRegionTotals, res.Mode)

	expected := map[string]RegionCount{
		"Norte":        {Value: 10, Formatted: "10"},
		"Nordeste":     {Value: 20, Formatted: "20"},
		"Sudeste":      {Value: 30, Formatted: "30"},
		"Sul":          {Value: 15, Formatted: "15"},
		"Centro-Oeste": {Value: 5, Formatted: "5"},
		"Total":        {Value: 80, Formatted: "80"},
	}
	require.Empty(t, cmp.Diff(expected, res.Regions))
}

func TestRegionTotalsSumInvariant(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)

	for _, sex := range []string{"ALL", "M", "F"} {
		res, err := client.QueryRegionTotals(context.Background(), 2021, sex, "")
		require.NoError(t, err)

		var sum float64
		for name, count := range res.Regions {
			if name == TotalLabel {
				continue
			}
			sum += count.Value
		}
		require.InDelta(t, sum, res.Regions[TotalLabel].Value, 1e-9, "sex %s", sex)
	}
}

func TestRegionFilter(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)
	ctx := context.Background()

	unfiltered, err := client.QueryRegionTotals(ctx, 2021, "ALL", "")
	require.NoError(t, err)

	filtered, err := client.QueryRegionTotals(ctx, 2021, "ALL", "Sudeste")
	require.NoError(t, err)

	require.Len(t, filtered.Regions, 2)
	require.Equal(t, unfiltered.Regions["Sudeste"], filtered.Regions["Sudeste"])
	require.Equal(t, unfiltered.Regions[TotalLabel], filtered.Regions[TotalLabel])
}

func TestRegionValidation(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)

	_, err := client.Query(context.Background(), Query{Year: 2021, Region: "Sudest"})
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "region", invalid.Field)
	require.Equal(t, "Sudeste", invalid.Suggestion)

	// validation failures must not touch the network
	require.Equal(t, 0, h.handshakeCount())
	require.Equal(t, 0, h.postCount())
}

func TestSexValidation(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)
	ctx := context.Background()

	_, err := client.Query(ctx, Query{Year: 2021, Sex: "X"})
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "sex", invalid.Field)
	require.Equal(t, 0, h.postCount())

	// case-insensitive
	_, err = client.Query(ctx, Query{Year: 2021, Sex: "m"})
	require.NoError(t, err)
	h.mu.Lock()
	require.Contains(t, h.posts[len(h.posts)-1], "XSexo=Masculino%7CM%7C1")
	h.mu.Unlock()
}

func TestAgeGroupValidation(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)

	_, err := client.Query(context.Background(), Query{Year: 2021, AgeGroup: "25 a 29"})
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "age group", invalid.Field)
	require.Equal(t, "25 a 29 anos", invalid.Suggestion)
	require.Equal(t, 0, h.postCount())
}

func TestModePrecedence(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)

	// diagnosis wins over age group
	res, err := client.Query(context.Background(), Query{
		Year:      2021,
		Diagnosis: "C50",
		AgeGroup:  "25 a 29 anos",
	})
	require.NoError(t, err)
	require.Equal(t, ModeDiagnoses, res.Mode)
	require.Contains(t, res.Fragments, "C50")

	h.mu.Lock()
	payload := h.posts[0]
	h.mu.Unlock()
	require.Contains(t, payload, "XDiagn%F3stico+Detalhado=C50%7CC50%7C3")
	require.Contains(t, payload, "XFaixa+et%E1ria=TODAS_AS_CATEGORIAS__")
}

func TestDiagnosisNoData(t *testing.T) {
	h := &tabnetHandler{noData: true}
	client := newTestClient(t, h)

	res, err := client.Query(context.Background(), Query{Year: 2021, Diagnosis: "C50", Sex: "M"})
	require.NoError(t, err)
	require.Equal(t, ModeDiagnoses, res.Mode)
	require.Len(t, res.Fragments, 1)
	require.Contains(t, res.Fragments, "C50")
	require.Nil(t, res.Fragments["C50"])
}

func TestAgeGroupSingle(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)

	res, err := client.QueryAgeGroups(context.Background(), 2021, "F", "25 a 29 anos", false, 1)
	require.NoError(t, err)
	require.Equal(t, ModeAgeGroups, res.Mode)
	require.Len(t, res.Fragments, 1)

	frag := res.Fragments["25 a 29 anos"]
	require.NotNil(t, frag)
	rows, err := frag.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, rows[0].RegionCode)
}

func TestAgeGroupBatchOrderIndependence(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)
	ctx := context.Background()

	sequential, err := client.QueryAgeGroups(ctx, 2021, "ALL", "", false, 1)
	require.NoError(t, err)
	parallel, err := client.QueryAgeGroups(ctx, 2021, "ALL", "", true, 4)
	require.NoError(t, err)

	require.Len(t, sequential.Fragments, len(AgeGroups))
	for _, label := range AgeGroupLabels() {
		require.Contains(t, sequential.Fragments, label)
	}

	// sequential and parallel runs of the same batch must be
	// content-equal no matter the completion order
	require.Empty(t, cmp.Diff(sequential.Fragments, parallel.Fragments))
}

func TestDiagnosisBatch(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)

	res, err := client.QueryDiagnoses(context.Background(), 2021, "ALL", "", true, 16)
	require.NoError(t, err)
	require.Len(t, res.Fragments, len(DiagnosisCodes))
	for _, code := range DiagnosisCodes {
		require.Contains(t, res.Fragments, code)
	}
}

func TestBatchFailFast(t *testing.T) {
	h := &tabnetHandler{failMarker: "XFaixa+et%E1ria=80+anos"}
	client := newTestClient(t, h)

	res, err := client.QueryAgeGroups(context.Background(), 2021, "ALL", "", true, 4)
	require.Error(t, err)
	require.Nil(t, res)

	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusInternalServerError, status.StatusCode)
	require.Equal(t, "80 anos e mais", status.Label)
}

func TestHandshakeOnce(t *testing.T) {
	h := &tabnetHandler{}
	client := newTestClient(t, h)
	ctx := context.Background()

	_, err := client.Query(ctx, Query{Year: 2021})
	require.NoError(t, err)
	_, err = client.Query(ctx, Query{Year: 2021, Sex: "F"})
	require.NoError(t, err)

	require.Equal(t, 1, h.handshakeCount())
	require.Equal(t, 2, h.postCount())
}

func TestHandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{BaseUrl: srv.URL})
	require.NoError(t, err)

	_, err = client.Query(context.Background(), Query{Year: 2021})
	require.Error(t, err)

	var status *StatusError
	require.True(t, errors.As(err, &status))
	require.Equal(t, http.StatusNotFound, status.StatusCode)
}
