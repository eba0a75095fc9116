package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speccoll/arkmint/pkg/core/domain"
)

// consolePage renders a minimal /manage results table. Each cellsByClass
// entry becomes one td column; omitting an entry simulates the console
// dropping a cell.
func consolePage(maxPage int, cellsByClass map[string][]string) string {
	page := fmt.Sprintf(`<html><body><form><input type="hidden" name="p_maxpage" value="%d"/></form><table>`, maxPage)
	for _, class := range []string{"c_creator", "c_title", "c_identifier", "c_owner", "c_create_time", "c_update_time", "c_id_status"} {
		for _, cell := range cellsByClass[class] {
			page += fmt.Sprintf(`<tr><td class="%s"><a href="#">%s</a></td></tr>`, class, cell)
		}
	}
	return page + "</table></body></html>"
}

func newConsole(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "hunter2" {
			http.Error(w, "bad credentials", http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc123"})
	})
	mux.HandleFunc("GET /manage", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sessionid")
		if err != nil || cookie.Value != "abc123" {
			http.Error(w, "not logged in", http.StatusForbidden)
			return
		}
		body, ok := pages[r.URL.Query().Get("p")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Options{
		BaseURL:  server.URL,
		Username: "admin",
		Password: "hunter2",
		Owner:    "user_lib",
	})
	require.NoError(t, err)
	return client
}

func TestQuerySinglePage(t *testing.T) {
	server := newConsole(t, map[string]string{
		"1": consolePage(1, map[string][]string{
			"c_creator":     {"Doe, J."},
			"c_title":       {"Papers"},
			"c_identifier":  {"ark:/99999/fk41"},
			"c_owner":       {"user_lib"},
			"c_create_time": {"2020-01-01"},
			"c_update_time": {"2021-01-01"},
			"c_id_status":   {"public"},
		}),
	})

	rows, err := newTestClient(t, server).Query(context.Background(), url.Values{"target": {"https://example.edu/1"}})
	require.NoError(t, err)
	require.Equal(t, []domain.SearchRow{{
		Creator: "Doe, J.",
		Title:   "Papers",
		ARK:     "ark:/99999/fk41",
		Owner:   "user_lib",
		Created: "2020-01-01",
		Updated: "2021-01-01",
		Status:  "public",
	}}, rows)
}

func TestQueryPaginates(t *testing.T) {
	server := newConsole(t, map[string]string{
		"1": consolePage(2, map[string][]string{
			"c_title":      {"One"},
			"c_identifier": {"ark:/99999/fk41"},
		}),
		"2": consolePage(2, map[string][]string{
			"c_title":      {"Two"},
			"c_identifier": {"ark:/99999/fk42"},
		}),
	})

	rows, err := newTestClient(t, server).Query(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "ark:/99999/fk41", rows[0].ARK)
	require.Equal(t, "One", rows[0].Title)
	require.Equal(t, "ark:/99999/fk42", rows[1].ARK)
	require.Equal(t, "Two", rows[1].Title)
}

func TestQueryFillsMissingCells(t *testing.T) {
	// Two identifiers but only one owner cell: the short column is padded,
	// never truncated.
	server := newConsole(t, map[string]string{
		"1": consolePage(1, map[string][]string{
			"c_title":      {"One", "Two"},
			"c_identifier": {"ark:/99999/fk41", "ark:/99999/fk42"},
			"c_owner":      {"user_lib"},
		}),
	})

	rows, err := newTestClient(t, server).Query(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "user_lib", rows[0].Owner)
	require.Equal(t, "", rows[1].Owner)
	require.Equal(t, "ark:/99999/fk42", rows[1].ARK)
}

func TestQueryBadLogin(t *testing.T) {
	server := newConsole(t, nil)
	client, err := NewClient(Options{
		BaseURL:  server.URL,
		Username: "admin",
		Password: "wrong",
	})
	require.NoError(t, err)

	_, err = client.Query(context.Background(), nil)
	require.Error(t, err)
}

func TestFindByTargetSetsFilter(t *testing.T) {
	var gotTarget string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("GET /manage", func(w http.ResponseWriter, r *http.Request) {
		gotTarget = r.URL.Query().Get("target")
		w.Write([]byte(consolePage(1, nil)))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	rows, err := newTestClient(t, server).FindByTarget(context.Background(), "https://example.edu/x")
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, "https://example.edu/x", gotTarget)
}

func TestFindReusableSetsFilter(t *testing.T) {
	var gotTitle string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("GET /manage", func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.URL.Query().Get("title")
		w.Write([]byte(consolePage(1, map[string][]string{
			"c_identifier": {"ark:/99999/fk4r"},
		})))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	rows, err := newTestClient(t, server).FindReusable(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ark:/99999/fk4r", rows[0].ARK)
	require.Equal(t, "reuse", gotTitle)
}
