package nvd_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/types"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/nvd"
	"github.com/m-mizutani/gt"
)

func feedPage(entries ...string) string {
	body := `{"resultsPerPage":20,"startIndex":0,"totalResults":100,"vulnerabilities":[`
	for i, e := range entries {
		if i > 0 {
			body += ","
		}
		body += e
	}
	return body + `]}`
}

func cveEntry(id, desc string) string {
	return fmt.Sprintf(`{"cve":{"id":%q,"published":"2024-03-01T10:15:00.000","descriptions":[{"lang":"en","value":%q},{"lang":"es","value":"otra"}]}}`, id, desc)
}

func TestNew(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := nvd.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("accepts valid URL", func(t *testing.T) {
		c, err := nvd.New(nvd.DefaultBaseURL)
		gt.NoError(t, err).Required()
		gt.Value(t, c).NotNil()
	})
}

func TestFetchPage(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a page and reports more", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gt.Value(t, r.URL.Query().Get("startIndex")).Equal("40")
			gt.Value(t, r.URL.Query().Get("resultsPerPage")).Equal("20")
			fmt.Fprint(w, feedPage(
				cveEntry("CVE-2024-1111", "heap overflow"),
				cveEntry("CVE-2024-2222", "path traversal"),
			))
		}))
		defer srv.Close()

		c, err := nvd.New(srv.URL)
		gt.NoError(t, err).Required()

		vulns, fetched, err := c.FetchPage(ctx, 40, 20)
		gt.NoError(t, err).Required()
		gt.Number(t, fetched).Equal(2)
		gt.Number(t, len(vulns)).Equal(2)
		gt.Value(t, vulns[0].ID).Equal(types.VulnID("CVE-2024-1111"))
		gt.Value(t, vulns[0].Description).Equal("heap overflow")
		gt.Bool(t, vulns[0].Published.IsZero()).False()
	})

	t.Run("empty page ends pagination", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, feedPage())
		}))
		defer srv.Close()

		c, err := nvd.New(srv.URL)
		gt.NoError(t, err).Required()

		vulns, fetched, err := c.FetchPage(ctx, 0, 20)
		gt.NoError(t, err).Required()
		gt.Number(t, fetched).Equal(0)
		gt.Number(t, len(vulns)).Equal(0)
	})

	t.Run("sends API key header when configured", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gt.Value(t, r.Header.Get("apiKey")).Equal("test-key")
			fmt.Fprint(w, feedPage())
		}))
		defer srv.Close()

		c, err := nvd.New(srv.URL, nvd.WithAPIKey("test-key"))
		gt.NoError(t, err).Required()

		_, _, err = c.FetchPage(ctx, 0, 20)
		gt.NoError(t, err)
	})

	t.Run("non-2xx wraps ErrFeedUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c, err := nvd.New(srv.URL)
		gt.NoError(t, err).Required()

		_, _, err = c.FetchPage(ctx, 0, 20)
		gt.Bool(t, errors.Is(err, nvd.ErrFeedUnavailable)).True()
	})

	t.Run("malformed body wraps ErrFeedUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		}))
		defer srv.Close()

		c, err := nvd.New(srv.URL)
		gt.NoError(t, err).Required()

		_, _, err = c.FetchPage(ctx, 0, 20)
		gt.Bool(t, errors.Is(err, nvd.ErrFeedUnavailable)).True()
	})

	t.Run("unreachable feed wraps ErrFeedUnavailable", func(t *testing.T) {
		c, err := nvd.New("http://127.0.0.1:1")
		gt.NoError(t, err).Required()

		_, _, err = c.FetchPage(ctx, 0, 20)
		gt.Bool(t, errors.Is(err, nvd.ErrFeedUnavailable)).True()
	})

	t.Run("rejects invalid paging arguments", func(t *testing.T) {
		c, err := nvd.New(nvd.DefaultBaseURL)
		gt.NoError(t, err).Required()

		_, _, err = c.FetchPage(ctx, -1, 20)
		gt.Value(t, err).NotNil()

		_, _, err = c.FetchPage(ctx, 0, 0)
		gt.Value(t, err).NotNil()
	})

	t.Run("entries without an ID are dropped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, feedPage(
				`{"cve":{"id":"","descriptions":[]}}`,
				cveEntry("CVE-2024-3333", "still counted"),
			))
		}))
		defer srv.Close()

		c, err := nvd.New(srv.URL)
		gt.NoError(t, err).Required()

		vulns, fetched, err := c.FetchPage(ctx, 0, 20)
		gt.NoError(t, err).Required()
		gt.Number(t, fetched).Equal(2)
		gt.Number(t, len(vulns)).Equal(1)
		gt.Value(t, vulns[0].ID).Equal(types.VulnID("CVE-2024-3333"))
	})
}
