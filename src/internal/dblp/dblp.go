// Package dblp talks to the two read-only DBLP endpoints used for
// bibliography maintenance: publication search and BibTeX record retrieval.
package dblp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dblpfetch/src/internal/httpx"
)

const (
	DefaultSearchURL = "https://dblp.org/search/publ/api"
	DefaultRecordURL = "https://dblp.org/rec/"
)

// ErrUnexpectedResponse is returned when DBLP answers with a shape we cannot use.
var ErrUnexpectedResponse = errors.New("dblp: unexpected response")

// Client issues requests against DBLP. The zero value uses the public
// endpoints and a plain http.Client without timeout.
type Client struct {
	HTTP      httpx.Doer
	SearchURL string
	RecordURL string
	UserAgent string
}

// NewClient returns a Client whose HTTP calls time out after timeout (0 = never).
func NewClient(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}, SearchURL: DefaultSearchURL, RecordURL: DefaultRecordURL}
}

// SearchResult is the part of a publication search we act on.
type SearchResult struct {
	// Total is the number of publications matching the query.
	Total int
	// Keys holds the bare DBLP keys (conf/x/Y20) of the hits that were sent.
	Keys []string
}

// searchResponse mirrors the JSON layout of /search/publ/api?format=json.
type searchResponse struct {
	Result struct {
		Hits struct {
			Total string `json:"@total"`
			Hit   []struct {
				Info struct {
					Key   string `json:"key"`
					Title string `json:"title"`
				} `json:"info"`
			} `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

// Search runs a publication search. query is the plus-joined term list built
// from a keyword-alias citation; each term is escaped individually.
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	terms := strings.Split(query, "+")
	for i, t := range terms {
		terms[i] = url.QueryEscape(t)
	}
	u := c.searchURL() + "?q=" + strings.Join(terms, "+") + "&format=json"
	body, err := c.get(ctx, u, "application/json")
	if err != nil {
		return SearchResult{}, err
	}
	defer body.Close()

	var sr searchResponse
	if err := json.NewDecoder(body).Decode(&sr); err != nil {
		return SearchResult{}, fmt.Errorf("%w: search %q: %v", ErrUnexpectedResponse, query, err)
	}
	total, err := strconv.Atoi(strings.TrimSpace(sr.Result.Hits.Total))
	if err != nil {
		return SearchResult{}, fmt.Errorf("%w: search %q: bad hit count %q", ErrUnexpectedResponse, query, sr.Result.Hits.Total)
	}
	res := SearchResult{Total: total}
	for _, h := range sr.Result.Hits.Hit {
		if k := strings.TrimSpace(h.Info.Key); k != "" {
			res.Keys = append(res.Keys, k)
		}
	}
	return res, nil
}

// UniqueKey returns the single matching key when the search matched exactly one publication.
func (r SearchResult) UniqueKey() (string, bool, error) {
	if r.Total != 1 {
		return "", false, nil
	}
	if len(r.Keys) != 1 {
		return "", false, fmt.Errorf("%w: one match reported but %d keys returned", ErrUnexpectedResponse, len(r.Keys))
	}
	return r.Keys[0], true, nil
}

// FetchRecord downloads the BibTeX for the bare DBLP key path (conf/x/Y20).
// The body may hold several entries, e.g. a paper followed by its proceedings.
func (c *Client) FetchRecord(ctx context.Context, path string) (string, error) {
	u := strings.TrimRight(c.recordURL(), "/") + "/" + strings.TrimLeft(path, "/") + ".bib"
	body, err := c.get(ctx, u, "application/x-bibtex, text/plain")
	if err != nil {
		return "", err
	}
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) get(ctx context.Context, u, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	httpx.SetUA(req, c.UserAgent)
	resp, err := c.doer().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("dblp: GET %s: http %d: %s", u, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp.Body, nil
}

func (c *Client) doer() httpx.Doer {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) searchURL() string {
	if c.SearchURL == "" {
		return DefaultSearchURL
	}
	return c.SearchURL
}

func (c *Client) recordURL() string {
	if c.RecordURL == "" {
		return DefaultRecordURL
	}
	return c.RecordURL
}
