package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/stretchr/testify/require"
)

// resultsPage renders a portal results page with a header row and the given rows.
func resultsPage(tableID string, rows ...[]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div id="%s"><table>`, tableID)
	b.WriteString(`<tr><th>Ver</th><th>Rit</th><th>Tribunal</th><th>Caratulado</th></tr>`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<td> %s </td>", cell)
		}
		b.WriteString("</tr>")
	}
	b.WriteString(`</table></div></body></html>`)
	return b.String()
}

func civilRow(rit string) []string {
	return []string{"", rit, "1º Juzgado Civil de Santiago", "PEREZ/BANCO", "01/03/2023", "Tramitación", "Principal", "Juzgado"}
}

func newTestSession(t *testing.T, handler http.Handler) (*Session, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewSession(Options{BaseURL: srv.URL, UserAgent: "test-agent", DetailToken: "tok"}, logger.Nop())
	require.NoError(t, err)
	return s, srv
}
