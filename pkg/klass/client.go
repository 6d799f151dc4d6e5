package klass

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
)

// DefaultBaseURL is the public KLASS API.
const DefaultBaseURL = "https://data.ssb.no/api/klass/v1"

// Client talks to the KLASS REST API. Requests are not retried.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	language string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithLanguage sets the default language when a Query has none.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// NewClient returns a client for DefaultBaseURL unless configured otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
		language: "nb",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type codesResponse struct {
	Codes []Code `json:"codes"`
}

type correspondenceResponse struct {
	Items []CorrespondenceItem `json:"correspondenceItems"`
}

// Codes fetches a code list for the window in q.
func (c *Client) Codes(ctx context.Context, classification int, q Query) ([]Code, error) {
	params := c.params(q)
	path := fmt.Sprintf("/classifications/%d/codes", classification)
	if q.To == "" {
		path = fmt.Sprintf("/classifications/%d/codesAt", classification)
		params.Set("date", q.From)
	} else {
		params.Set("from", q.From)
		params.Set("to", q.To)
	}
	if q.SelectLevel > 0 {
		params.Set("selectLevel", strconv.Itoa(q.SelectLevel))
	}

	var resp codesResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Codes {
		resp.Codes[i].Code = NormalizeCode(resp.Codes[i].Code)
		resp.Codes[i].ParentCode = NormalizeCode(resp.Codes[i].ParentCode)
		resp.Codes[i].Name = NormalizeName(resp.Codes[i].Name)
	}
	return resp.Codes, nil
}

// Correspondence fetches the source -> target correspondence for the window in q.
func (c *Client) Correspondence(ctx context.Context, source, target int, q Query) ([]CorrespondenceItem, error) {
	params := c.params(q)
	params.Set("targetClassificationId", strconv.Itoa(target))
	params.Set("from", q.From)
	if q.To != "" {
		params.Set("to", q.To)
	}

	var resp correspondenceResponse
	path := fmt.Sprintf("/classifications/%d/corresponds", source)
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Items {
		it := &resp.Items[i]
		it.SourceCode = NormalizeCode(it.SourceCode)
		it.TargetCode = NormalizeCode(it.TargetCode)
		it.SourceName = NormalizeName(it.SourceName)
		it.TargetName = NormalizeName(it.TargetName)
	}
	return resp.Items, nil
}

func (c *Client) params(q Query) url.Values {
	p := url.Values{}
	lang := q.Language
	if lang == "" {
		lang = c.language
	}
	if lang != "" {
		p.Set("language", lang)
	}
	if q.IncludeFuture {
		p.Set("includeFuture", "true")
	}
	return p
}

func (c *Client) get(ctx context.Context, path string, params url.Values, into any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("klass request %s: %w", u, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("klass request", "url", u, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, URL: u, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}
