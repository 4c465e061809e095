package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/segment"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
	"go.uber.org/zap"
)

const (
	// maxExtractSentences is the largest exsentences value the extracts API accepts
	maxExtractSentences = 10
	maxResponseBytes    = 8 << 20
)

// Resolve modes
const (
	ResolveSearch = "search" // Full-text search, best hit becomes the page title
	ResolveTitle  = "title"  // The query is used as the page title
)

// MediaWiki looks up evidence through the MediaWiki action API
// (https://{lang}.wikipedia.org/w/api.php by default)
type MediaWiki struct {
	endpoint     string
	language     string
	resolve      string
	maxSentences int
	introOnly    bool
	userAgent    string
	httpClient   *http.Client
	limiter      *worker.Limiter
	robots       *util.RobotsChecker
	truncator    segment.Segmenter
	logger       *zap.Logger
}

// NewMediaWiki creates a MediaWiki client from configuration. limiter and
// robots are optional.
func NewMediaWiki(cfg model.EvidenceConfig, limiter *worker.Limiter, robots *util.RobotsChecker, logger *zap.Logger) *MediaWiki {
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", cfg.Language)
	}

	resolve := cfg.Resolve
	if resolve == "" {
		resolve = ResolveSearch
	}

	return &MediaWiki{
		endpoint:     endpoint,
		language:     cfg.Language,
		resolve:      resolve,
		maxSentences: cfg.MaxSentences,
		introOnly:    cfg.IntroOnly,
		userAgent:    cfg.UserAgent,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		limiter:   limiter,
		robots:    robots,
		truncator: segment.NewRuleSegmenter(),
		logger:    logger,
	}
}

// Endpoint returns the API URL in use
func (m *MediaWiki) Endpoint() string {
	return m.endpoint
}

// Lookup resolves query to a page and returns its plain-text extract.
// Missing pages are NotFound; disambiguation pages are Ambiguous with the
// first three listed options.
func (m *MediaWiki) Lookup(ctx context.Context, query string) (model.EvidenceResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.NotFound(), nil
	}

	title := query
	if m.resolve == ResolveSearch {
		var err error
		title, err = m.search(ctx, query)
		if err != nil {
			return model.EvidenceResult{}, err
		}
		if title == "" {
			m.logger.Debug("no search hit", zap.String("query", query))
			return model.NotFound(), nil
		}
	}

	page, err := m.page(ctx, query, title)
	if err != nil {
		return model.EvidenceResult{}, err
	}

	if page == nil || page.Missing || page.Invalid {
		m.logger.Debug("page missing", zap.String("query", query), zap.String("title", title))
		return model.NotFound(), nil
	}

	if _, ok := page.PageProps["disambiguation"]; ok {
		candidates, err := m.disambiguation(ctx, query, page.Title)
		if err != nil {
			return model.EvidenceResult{}, err
		}
		m.logger.Debug("ambiguous title", zap.String("query", query), zap.Strings("candidates", candidates))
		return model.Ambiguous(candidates), nil
	}

	text := m.truncate(ctx, strings.TrimSpace(page.Extract))
	if text == "" {
		return model.NotFound(), nil
	}

	return model.Found(page.Title, text, page.FullURL), nil
}

type searchResponse struct {
	Query struct {
		SearchInfo struct {
			Suggestion string `json:"suggestion"`
		} `json:"searchinfo"`
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

// search returns the best matching title, or "" when nothing matches
func (m *MediaWiki) search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "1")
	params.Set("srprop", "")
	params.Set("srinfo", "suggestion")

	var resp searchResponse
	if err := m.get(ctx, query, "search", params, &resp); err != nil {
		return "", err
	}

	if len(resp.Query.Search) > 0 {
		return resp.Query.Search[0].Title, nil
	}
	// "Did you mean" spelling correction
	return resp.Query.SearchInfo.Suggestion, nil
}

type apiPage struct {
	Title     string                     `json:"title"`
	Missing   bool                       `json:"missing"`
	Invalid   bool                       `json:"invalid"`
	Extract   string                     `json:"extract"`
	FullURL   string                     `json:"fullurl"`
	PageProps map[string]json.RawMessage `json:"pageprops"`
}

type pageResponse struct {
	Query struct {
		Pages []apiPage `json:"pages"`
	} `json:"query"`
}

// page fetches the plain-text extract and page properties for title
func (m *MediaWiki) page(ctx context.Context, query, title string) (*apiPage, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "extracts|pageprops|info")
	params.Set("ppprop", "disambiguation")
	params.Set("inprop", "url")
	params.Set("explaintext", "1")
	params.Set("exsectionformat", "plain")
	params.Set("redirects", "1")
	if m.introOnly {
		params.Set("exintro", "1")
	}
	if m.maxSentences > 0 && m.maxSentences <= maxExtractSentences {
		params.Set("exsentences", strconv.Itoa(m.maxSentences))
	}

	var resp pageResponse
	if err := m.get(ctx, query, "extract", params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Query.Pages) == 0 {
		return nil, nil
	}
	return &resp.Query.Pages[0], nil
}

type parseResponse struct {
	Parse struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"parse"`
}

// disambiguation lists the options of a disambiguation page in page order
func (m *MediaWiki) disambiguation(ctx context.Context, query, title string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("prop", "text")
	params.Set("redirects", "1")
	params.Set("disablelimitreport", "1")
	params.Set("disableeditsection", "1")

	var resp parseResponse
	if err := m.get(ctx, query, "parse", params, &resp); err != nil {
		return nil, err
	}

	links, err := extract.ListLinks(resp.Parse.Text, m.endpoint)
	if err != nil {
		return nil, &LookupError{Query: query, Op: "parse", Err: fmt.Errorf("parse disambiguation html: %w", err)}
	}

	candidates := make([]string, 0, model.MaxCandidates)
	for _, l := range links {
		if len(candidates) == model.MaxCandidates {
			break
		}
		candidates = append(candidates, l.Title)
	}
	return candidates, nil
}

// truncate keeps the first maxSentences sentences when the API could not do it
func (m *MediaWiki) truncate(ctx context.Context, text string) string {
	if m.maxSentences <= maxExtractSentences || text == "" {
		return text
	}
	spans, err := m.truncator.Segment(ctx, text)
	if err != nil || len(spans) <= m.maxSentences {
		return text
	}
	return text[:spans[m.maxSentences-1].End]
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// Unwrap marks server-side throttling as retryable
func (e *apiError) Unwrap() error {
	switch e.Code {
	case "maxlag", "ratelimited", "readonly":
		return errServerBusy
	}
	return nil
}

// get performs one API call and decodes the JSON answer into out
func (m *MediaWiki) get(ctx context.Context, query, op string, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	rawURL := m.endpoint + "?" + params.Encode()

	if m.robots != nil {
		delay, err := m.robots.Check(ctx, rawURL)
		if err != nil {
			return &LookupError{Query: query, Op: "robots", Err: err}
		}
		if m.limiter != nil {
			m.limiter.ApplyCrawlDelay(rawURL, delay)
		}
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx, rawURL); err != nil {
			return &LookupError{Query: query, Op: op, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &LookupError{Query: query, Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &LookupError{Query: query, Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &LookupError{Query: query, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := clip(strings.TrimSpace(string(body)), 200)
		return &LookupError{Query: query, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", snippet)}
	}

	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &LookupError{Query: query, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if envelope.Error != nil {
		return &LookupError{Query: query, Op: op, Err: envelope.Error}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &LookupError{Query: query, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

// clip cuts s to at most n bytes without splitting a rune
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
