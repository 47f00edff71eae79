package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// TokenSource names where a token was found on a request.
type TokenSource string

const (
	SourceHeader TokenSource = "header"
	SourceCookie TokenSource = "cookie"
	SourceQuery  TokenSource = "query"
)

// DefaultExtractionOrder is header, then cookie, then query string.
var DefaultExtractionOrder = []TokenSource{SourceHeader, SourceCookie, SourceQuery}

// Defaults for carrier names.
const (
	DefaultCookieName = "token"
	DefaultQueryParam = "token"
)

// ExtractorConfig configures a TokenExtractor.
type ExtractorConfig struct {
	Order      []TokenSource
	CookieName string
	QueryParam string

	// AllowQuery enables the query-string carrier. Off by default.
	AllowQuery bool
}

// TokenExtractor finds the session token on an incoming request.
type TokenExtractor struct {
	order      []TokenSource
	cookieName string
	queryParam string
	allowQuery bool
}

// NewTokenExtractor returns an extractor for cfg. Unknown sources are an
// error; an empty order falls back to DefaultExtractionOrder.
func NewTokenExtractor(cfg ExtractorConfig) (*TokenExtractor, error) {
	order := cfg.Order
	if len(order) == 0 {
		order = DefaultExtractionOrder
	}
	for _, src := range order {
		switch src {
		case SourceHeader, SourceCookie, SourceQuery:
		default:
			return nil, fmt.Errorf("%w: unknown token source %q", ErrValidation, src)
		}
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.QueryParam == "" {
		cfg.QueryParam = DefaultQueryParam
	}
	return &TokenExtractor{
		order:      append([]TokenSource(nil), order...),
		cookieName: cfg.CookieName,
		queryParam: cfg.QueryParam,
		allowQuery: cfg.AllowQuery,
	}, nil
}

// CookieName returns the session cookie name.
func (e *TokenExtractor) CookieName() string {
	return e.cookieName
}

// Extract returns the first token found in the configured order.
//
// A carrier that is present but malformed stops the search with
// ErrMalformedToken; a lower-priority carrier is never consulted in that
// case. ErrNoToken means no carrier was present at all.
func (e *TokenExtractor) Extract(r *http.Request) (string, TokenSource, error) {
	for _, src := range e.order {
		var (
			token   string
			present bool
			err     error
		)
		switch src {
		case SourceHeader:
			token, present, err = fromHeader(r)
		case SourceCookie:
			token, present, err = e.fromCookie(r)
		case SourceQuery:
			if !e.allowQuery {
				continue
			}
			token, present, err = e.fromQuery(r)
		}
		if err != nil {
			return "", src, err
		}
		if present {
			return token, src, nil
		}
	}
	return "", "", ErrNoToken
}

func fromHeader(r *http.Request) (string, bool, error) {
	values := r.Header.Values("Authorization")
	if len(values) == 0 {
		return "", false, nil
	}
	if len(values) > 1 {
		return "", true, fmt.Errorf("%w: multiple Authorization headers", ErrMalformedToken)
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true, fmt.Errorf("%w: expected Bearer scheme", ErrMalformedToken)
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", true, fmt.Errorf("%w: empty or malformed bearer token", ErrMalformedToken)
	}
	return token, true, nil
}

func (e *TokenExtractor) fromCookie(r *http.Request) (string, bool, error) {
	c, err := r.Cookie(e.cookieName)
	if err != nil {
		return "", false, nil //nolint:nilerr // http.ErrNoCookie means absent
	}
	if strings.TrimSpace(c.Value) == "" {
		return "", true, fmt.Errorf("%w: empty session cookie", ErrMalformedToken)
	}
	return c.Value, true, nil
}

func (e *TokenExtractor) fromQuery(r *http.Request) (string, bool, error) {
	q := r.URL.Query()
	if !q.Has(e.queryParam) {
		return "", false, nil
	}
	if len(q[e.queryParam]) > 1 {
		return "", true, fmt.Errorf("%w: repeated %s parameter", ErrMalformedToken, e.queryParam)
	}
	token := strings.TrimSpace(q.Get(e.queryParam))
	if token == "" {
		return "", true, fmt.Errorf("%w: empty %s parameter", ErrMalformedToken, e.queryParam)
	}
	return token, true, nil
}
