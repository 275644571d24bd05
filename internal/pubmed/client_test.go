package pubmed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEutils serves esearch/esummary/efetch from canned data and records the
// requests it receives.
type fakeEutils struct {
	mu       sync.Mutex
	requests []*http.Request

	total       int
	ids         []string
	esearchCode int
	summaryCode int
	failFetch   map[string]bool
	noAbstract  map[string]bool
}

func (f *fakeEutils) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	f.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
		if f.esearchCode != 0 {
			http.Error(w, "upstream down", f.esearchCode)
			return
		}
		quoted := make([]string, len(f.ids))
		for i, id := range f.ids {
			quoted[i] = fmt.Sprintf("%q", id)
		}
		fmt.Fprintf(w, `{"header":{"type":"esearch"},"esearchresult":{"count":"%d","retmax":"%d","idlist":[%s]}}`,
			f.total, len(f.ids), strings.Join(quoted, ","))
	case strings.HasSuffix(r.URL.Path, "/esummary.fcgi"):
		if f.summaryCode != 0 {
			http.Error(w, "summary down", f.summaryCode)
			return
		}
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		var docs []string
		for _, id := range ids {
			docs = append(docs, fmt.Sprintf(`%q:{"uid":%q,"title":"Paper %s","authors":[{"name":"Smith J","authtype":"Author"},{"name":"Doe A","authtype":"Author"}],"fulljournalname":"Journal of %s","pubdate":"2024 Jan","elocationid":"doi: 10.1000/%s"}`,
				id, id, id, id, id))
		}
		fmt.Fprintf(w, `{"result":{"uids":[],%s}}`, strings.Join(docs, ","))
	case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
		id := r.URL.Query().Get("id")
		if f.failFetch[id] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if f.noAbstract[id] {
			fmt.Fprint(w, articleXML(""))
			return
		}
		fmt.Fprint(w, articleXML(`<Abstract><AbstractText>Abstract of `+id+`</AbstractText></Abstract>`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeEutils) snapshot() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

func (f *fakeEutils) count(tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasSuffix(r.URL.Path, "/"+tool) {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, f *fakeEutils, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL + "/entrez/eutils"
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewClient(opts)
}

func TestSearchEndToEnd(t *testing.T) {
	f := &fakeEutils{total: 42, ids: []string{"111", "222", "333", "444", "555"}}
	c := newTestClient(t, f, Options{})

	expr := Convert("lung cancer treatment")
	require.Equal(t, "lung+AND+cancer+AND+treatment", expr)

	res, err := c.Search(context.Background(), expr, 3)
	require.NoError(t, err)

	assert.Equal(t, expr, res.MeshTerms)
	assert.Equal(t, DefaultWebURL+"?term=lung+AND+cancer+AND+treatment", res.SearchURL)
	assert.Equal(t, 42, res.TotalResults)
	require.Len(t, res.Papers, 3)
	for i, id := range []string{"111", "222", "333"} {
		p := res.Papers[i]
		assert.Equal(t, id, p.PMID)
		assert.Equal(t, "Paper "+id, p.Title)
		assert.Equal(t, "Smith J, Doe A", p.Authors)
		assert.Equal(t, "Journal of "+id, p.Journal)
		assert.Equal(t, "2024 Jan", p.PublicationDate)
		assert.Equal(t, "doi: 10.1000/"+id, p.DOI)
		assert.Equal(t, DefaultWebURL+id+"/", p.URL)
		assert.Equal(t, "Abstract of "+id, p.Abstract)
	}

	assert.Equal(t, 1, f.count("esearch.fcgi"))
	assert.Equal(t, 1, f.count("esummary.fcgi"))
	assert.Equal(t, 3, f.count("efetch.fcgi"))
}

func TestSearchRequestParameters(t *testing.T) {
	f := &fakeEutils{total: 1, ids: []string{"7"}}
	c := newTestClient(t, f, Options{APIKey: "secret"})

	_, err := c.Search(context.Background(), `cancer+AND+("last+5+years"[PDat])`, 0)
	require.NoError(t, err)

	reqs := f.snapshot()
	require.Len(t, reqs, 3)
	search := reqs[0].URL.Query()
	// '+' reaches the server as a space, which E-utilities treats as a separator
	assert.Equal(t, `cancer AND ("last 5 years"[PDat])`, search.Get("term"))
	assert.Equal(t, "pubmed", search.Get("db"))
	assert.Equal(t, "100", search.Get("retmax"))
	assert.Equal(t, "json", search.Get("retmode"))
	assert.Equal(t, "relevance", search.Get("sort"))
	for _, r := range reqs {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"), r.URL.Path)
	}
	assert.Equal(t, "7", reqs[1].URL.Query().Get("id"))
	assert.Equal(t, "xml", reqs[2].URL.Query().Get("retmode"))
}

func TestSearchNoAPIKeyOmitsParameter(t *testing.T) {
	f := &fakeEutils{total: 1, ids: []string{"7"}}
	c := newTestClient(t, f, Options{})

	_, err := c.Search(context.Background(), "cancer", 1)
	require.NoError(t, err)
	for _, r := range f.snapshot() {
		_, ok := r.URL.Query()["api_key"]
		assert.False(t, ok)
	}
}

func TestSearchZeroResultsShortCircuits(t *testing.T) {
	f := &fakeEutils{total: 0}
	c := newTestClient(t, f, Options{})

	res, err := c.Search(context.Background(), "nothing+AND+matches", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalResults)
	assert.NotNil(t, res.Papers)
	assert.Empty(t, res.Papers)

	assert.Equal(t, 1, f.count("esearch.fcgi"))
	assert.Equal(t, 0, f.count("esummary.fcgi"))
	assert.Equal(t, 0, f.count("efetch.fcgi"))
}

func TestSearchPaperCountIsBounded(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		ids        []string
		maxResults int
		want       int
	}{
		{"max below ids", 42, []string{"1", "2", "3", "4"}, 2, 2},
		{"fewer ids than max", 2, []string{"1", "2"}, 5, 2},
		{"default max", 9, []string{"1", "2", "3", "4", "5", "6", "7"}, 0, DefaultMaxResults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeEutils{total: tt.total, ids: tt.ids}
			c := newTestClient(t, f, Options{})
			res, err := c.Search(context.Background(), "x+AND+y", tt.maxResults)
			require.NoError(t, err)
			assert.Len(t, res.Papers, tt.want)
			assert.Equal(t, tt.want, f.count("efetch.fcgi"))
		})
	}
}

func TestSearchAbstractFailureIsIsolated(t *testing.T) {
	f := &fakeEutils{
		total:      3,
		ids:        []string{"1", "2", "3"},
		failFetch:  map[string]bool{"2": true},
		noAbstract: map[string]bool{"3": true},
	}
	c := newTestClient(t, f, Options{})

	res, err := c.Search(context.Background(), "x", 3)
	require.NoError(t, err)
	require.Len(t, res.Papers, 3)
	assert.Equal(t, "Abstract of 1", res.Papers[0].Abstract)
	assert.Equal(t, AbstractRetrievalError, res.Papers[1].Abstract)
	assert.Equal(t, AbstractNotAvailable, res.Papers[2].Abstract)
}

func TestSearchFatalStages(t *testing.T) {
	t.Run("esearch", func(t *testing.T) {
		f := &fakeEutils{esearchCode: http.StatusServiceUnavailable}
		c := newTestClient(t, f, Options{})
		_, err := c.Search(context.Background(), "x", 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRetrievalFailed))
		assert.Contains(t, err.Error(), "503")
	})
	t.Run("esummary", func(t *testing.T) {
		f := &fakeEutils{total: 2, ids: []string{"1", "2"}, summaryCode: http.StatusBadGateway}
		c := newTestClient(t, f, Options{})
		_, err := c.Search(context.Background(), "x", 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRetrievalFailed))
		assert.Equal(t, 0, f.count("efetch.fcgi"))
	})
	t.Run("unreachable", func(t *testing.T) {
		c := NewClient(Options{
			BaseURL: "http://127.0.0.1:1/",
			Timeout: time.Second,
			Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		_, err := c.Search(context.Background(), "x", 3)
		assert.True(t, errors.Is(err, ErrRetrievalFailed))
	})
}

func TestSearchCancelledDuringAbstracts(t *testing.T) {
	f := &fakeEutils{total: 3, ids: []string{"1", "2", "3"}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewClient(Options{
		BaseURL: srv.URL,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if strings.HasSuffix(r.URL.Path, "/efetch.fcgi") {
				cancel()
			}
			return http.DefaultTransport.RoundTrip(r)
		})},
	})

	res, err := c.Search(ctx, "x", 3)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, ErrRetrievalFailed))
	assert.LessOrEqual(t, f.count("efetch.fcgi"), 1)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestSearchEmptyExpression(t *testing.T) {
	f := &fakeEutils{}
	c := newTestClient(t, f, Options{})
	_, err := c.Search(context.Background(), "  ", 3)
	assert.True(t, errors.Is(err, ErrInvalidQuery))
	assert.Equal(t, 0, f.count("esearch.fcgi"))
}

func TestSearchIsPaced(t *testing.T) {
	f := &fakeEutils{total: 2, ids: []string{"1", "2"}}
	c := newTestClient(t, f, Options{Delay: 30 * time.Millisecond})

	start := time.Now()
	_, err := c.Search(context.Background(), "x", 2)
	require.NoError(t, err)
	// esearch, esummary, efetch x2: three paced gaps
	assert.GreaterOrEqual(t, time.Since(start), 85*time.Millisecond)
}

func TestEscapeTerm(t *testing.T) {
	assert.Equal(t, "lung+AND+cancer", escapeTerm("lung+AND+cancer"))
	assert.Equal(t, "cancer+OR+review%5Bpt%5D", escapeTerm("cancer+OR+review[pt]"))
	assert.Equal(t, "two+words", escapeTerm("two words"))
}
