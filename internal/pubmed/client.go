package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

const (
	DefaultBaseURL    = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	DefaultWebURL     = "https://pubmed.ncbi.nlm.nih.gov/"
	DefaultMaxResults = 5

	// MaxResultsLimit bounds maxResults; esearch never returns more ids.
	MaxResultsLimit = idLookupLimit

	// idLookupLimit is the retmax sent to esearch.
	idLookupLimit = 100
	userAgent     = "pubmed-search-assistant/1.0"
)

// Options configures a Client. Zero values fall back to the public NCBI
// endpoints, no API key, no pacing and a 30 second timeout.
type Options struct {
	BaseURL    string
	WebURL     string
	APIKey     string
	Delay      time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client runs the esearch → esummary → efetch pipeline against E-utilities.
type Client struct {
	baseURL    string
	webURL     string
	apiKey     string
	pacer      *Pacer
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.WebURL == "" {
		opts.WebURL = DefaultWebURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/") + "/",
		webURL:     strings.TrimRight(opts.WebURL, "/") + "/",
		apiKey:     opts.APIKey,
		pacer:      NewPacer(opts.Delay),
		httpClient: opts.HTTPClient,
		log:        opts.Logger.With("component", "pubmed"),
	}
}

// Search looks up ids for expr, fetches summaries for the first maxResults of
// them and then one abstract per paper. Id lookup and summary failures abort
// the search with ErrRetrievalFailed; abstract failures only degrade the
// affected paper.
func (c *Client) Search(ctx context.Context, expr string, maxResults int) (*models.SearchResult, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty search expression", ErrInvalidQuery)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	result := &models.SearchResult{
		MeshTerms: expr,
		SearchURL: c.webURL + "?term=" + escapeTerm(expr),
		Papers:    []models.PaperRecord{},
	}

	ids, total, err := c.lookupIDs(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	if total == 0 {
		return result, nil
	}
	result.TotalResults = total

	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	if len(ids) == 0 {
		return result, nil
	}

	papers, err := c.fetchSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	for i := range papers {
		abstract, err := c.fetchAbstract(ctx, papers[i].PMID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: abstracts: %w", ErrRetrievalFailed, ctxErr)
		}
		if err != nil {
			c.log.Warn("abstract fetch failed", "pmid", papers[i].PMID, "error", err)
			abstract = AbstractRetrievalError
		}
		papers[i].Abstract = abstract
	}
	result.Papers = papers

	c.log.Info("search complete", "terms", expr, "total", total, "papers", len(papers))
	return result, nil
}

// ---------------------------------------------------------------------------
// E-utilities stages
// ---------------------------------------------------------------------------

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

func (c *Client) lookupIDs(ctx context.Context, expr string) ([]string, int, error) {
	q := fmt.Sprintf("db=pubmed&term=%s&retmax=%d&retmode=json&sort=relevance", escapeTerm(expr), idLookupLimit)
	resp, err := c.get(ctx, "esearch.fcgi", q)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var out esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("esearch: decode: %w", err)
	}
	if out.Result.Error != "" {
		return nil, 0, fmt.Errorf("esearch: %s", out.Result.Error)
	}
	total, err := strconv.Atoi(out.Result.Count)
	if err != nil {
		return nil, 0, fmt.Errorf("esearch: bad count %q: %w", out.Result.Count, err)
	}
	return out.Result.IDList, total, nil
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type summaryDoc struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	FullJournalName string `json:"fulljournalname"`
	PubDate         string `json:"pubdate"`
	ELocationID     string `json:"elocationid"`
}

func (c *Client) fetchSummaries(ctx context.Context, ids []string) ([]models.PaperRecord, error) {
	q := "db=pubmed&id=" + strings.Join(ids, ",") + "&retmode=json"
	resp, err := c.get(ctx, "esummary.fcgi", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out esummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("esummary: decode: %w", err)
	}

	papers := make([]models.PaperRecord, 0, len(ids))
	for _, id := range ids {
		raw, ok := out.Result[id]
		if !ok {
			return nil, fmt.Errorf("esummary: no summary for %s", id)
		}
		var doc summaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("esummary: decode %s: %w", id, err)
		}
		names := make([]string, 0, len(doc.Authors))
		for _, a := range doc.Authors {
			names = append(names, a.Name)
		}
		papers = append(papers, models.PaperRecord{
			Title:           doc.Title,
			Authors:         strings.Join(names, ", "),
			Journal:         doc.FullJournalName,
			PublicationDate: doc.PubDate,
			DOI:             doc.ELocationID,
			PMID:            id,
			URL:             c.webURL + id + "/",
		})
	}
	return papers, nil
}

func (c *Client) fetchAbstract(ctx context.Context, pmid string) (string, error) {
	resp, err := c.get(ctx, "efetch.fcgi", "db=pubmed&id="+url.QueryEscape(pmid)+"&retmode=xml")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAbstractUnavailable, err)
	}
	defer resp.Body.Close()
	return parseAbstract(resp.Body)
}

// ---------------------------------------------------------------------------
// transport
// ---------------------------------------------------------------------------

// get waits for the pacer and issues a GET against an E-utilities tool.
// The caller owns the returned body.
func (c *Client) get(ctx context.Context, tool, query string) (*http.Response, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: pacing: %w", tool, err)
	}

	endpoint := c.baseURL + tool + "?" + query
	if c.apiKey != "" {
		endpoint += "&api_key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", tool, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	if err := checkResp(resp, tool); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// checkResp returns an error carrying the upstream body if the status is not 2xx.
func checkResp(resp *http.Response, tool string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s returned %d: %s", tool, resp.StatusCode, strings.TrimSpace(string(body)))
}

// escapeTerm query-escapes an expression while keeping the '+' separators
// that E-utilities reads as spaces.
func escapeTerm(expr string) string {
	return strings.ReplaceAll(url.QueryEscape(expr), "%2B", "+")
}
