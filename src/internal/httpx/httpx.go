package httpx

import "net/http"

// Doer is the minimal HTTP client interface used across packages.
type Doer interface {
    Do(req *http.Request) (*http.Response, error)
}

// DefaultUA identifies this tool to DBLP, which asks automated clients to say who they are.
const DefaultUA = "dblpfetch/1.0 (bibliography maintenance; +https://dblp.org/faq/)"

// SetUA sets the User-Agent header on the request, falling back to DefaultUA when ua is empty.
func SetUA(req *http.Request, ua string) {
    if req == nil {
        return
    }
    if ua == "" {
        ua = DefaultUA
    }
    req.Header.Set("User-Agent", ua)
}
