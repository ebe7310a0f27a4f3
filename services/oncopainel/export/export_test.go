package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/sqliteutil"
	"oncopainel-backend/lib/telemetry"

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

func upstream(noData bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "TS014", Value: "session", Path: "/"})
			w.Write([]byte("<html><body>painel</body></html>"))
			return
		}
		if noData {
			w.Write(latin1("<html><body>Nenhum registro encontrado</body></html>"))
			return
		}
		w.Write(latin1(`<html><body><script>data.addRows([['1 Região Norte', {v: 7, f: '7'}],
[' Total', {v: 7, f: '7'}]]);</script></body></html>`))
	})
}

func newExporter(t *testing.T, noData bool) Exporter {
	cleanup := telemetry.SetupForTesting(t, "test:export")
	t.Cleanup(cleanup)

	srv := httptest.NewServer(upstream(noData))
	t.Cleanup(srv.Close)

	client, err := tabnet.NewClient(tabnet.ClientOptions{BaseUrl: srv.URL})
	require.NoError(t, err)

	db, err := sqliteutil.OpenDB(Schema, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewExporter(db, client)
}

func TestExport(t *testing.T) {
	e := newExporter(t, false)

	err := e.Run(context.Background(), Options{Year: 2021, Parallel: true, MaxWorkers: 8})
	require.NoError(t, err)

	var totalRows int
	err = e.db.QueryRow(`SELECT COUNT(*) FROM region_totals`).Scan(&totalRows)
	require.NoError(t, err)
	// 3 sexes, one region row plus the Total row each
	require.Equal(t, 6, totalRows)

	var fragmentRows int
	err = e.db.QueryRow(`SELECT COUNT(*) FROM fragments`).Scan(&fragmentRows)
	require.NoError(t, err)
	require.Equal(t, 3*(len(tabnet.AgeGroups)+len(tabnet.DiagnosisCodes)), fragmentRows)

	var noDataRows int
	err = e.db.QueryRow(`SELECT COUNT(*) FROM fragments WHERE no_data = 1`).Scan(&noDataRows)
	require.NoError(t, err)
	require.Zero(t, noDataRows)
}

func TestExportNoData(t *testing.T) {
	e := newExporter(t, true)

	err := e.Run(context.Background(), Options{Year: 1999})
	require.NoError(t, err)

	var withRaw int
	err = e.db.QueryRow(`SELECT COUNT(*) FROM fragments WHERE no_data = 0`).Scan(&withRaw)
	require.NoError(t, err)
	require.Zero(t, withRaw)
}

func TestExportIdempotent(t *testing.T) {
	e := newExporter(t, false)
	ctx := context.Background()

	require.NoError(t, e.Run(ctx, Options{Year: 2021}))
	require.NoError(t, e.Run(ctx, Options{Year: 2021}))

	var totalRows int
	err := e.db.QueryRow(`SELECT COUNT(*) FROM region_totals`).Scan(&totalRows)
	require.NoError(t, err)
	require.Equal(t, 6, totalRows)
}
