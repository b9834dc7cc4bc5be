package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// URLRuleKind selects how a card's href becomes a detail URL.
type URLRuleKind int

// Supported URL-construction rules.
const (
	// PassThrough resolves the href against the list page URL.
	PassThrough URLRuleKind = iota
	// NumericID substitutes a numeric id taken from the href into {id}.
	NumericID
	// Template substitutes the raw href into {href}.
	Template
)

const (
	passThroughName     = "pass-through"
	idPlaceholder       = "{id}"
	hrefPlaceholder     = "{href}"
	pageQueryParameter  = "page"
	idQueryParameterKey = "id"
)

var digitRun = regexp.MustCompile(`\d+`)

func (k URLRuleKind) String() string {
	switch k {
	case PassThrough:
		return passThroughName
	case NumericID:
		return "numeric-id"
	case Template:
		return "template"
	default:
		return "unknown"
	}
}

// URLRule is a parsed url_pattern column.
type URLRule struct {
	Kind     URLRuleKind
	Template string
}

// ParseURLRule interprets a url_pattern value.
func ParseURLRule(pattern string) (URLRule, error) {
	pattern = strings.TrimSpace(pattern)
	switch {
	case pattern == "" || strings.EqualFold(pattern, passThroughName):
		return URLRule{Kind: PassThrough}, nil
	case strings.Contains(pattern, idPlaceholder):
		return URLRule{Kind: NumericID, Template: pattern}, nil
	case strings.Contains(pattern, hrefPlaceholder):
		return URLRule{Kind: Template, Template: pattern}, nil
	default:
		return URLRule{}, fmt.Errorf("%w: url pattern %q has no {id} or {href} placeholder", ErrInvalidSite, pattern)
	}
}

// Resolve builds the canonical detail URL for href found on listURL.
func (r URLRule) Resolve(listURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty href")
	}
	var raw string
	switch r.Kind {
	case PassThrough:
		base, err := url.Parse(listURL)
		if err != nil {
			return "", fmt.Errorf("parse list url: %w", err)
		}
		ref, err := url.Parse(href)
		if err != nil {
			return "", fmt.Errorf("parse href: %w", err)
		}
		raw = base.ResolveReference(ref).String()
	case NumericID:
		id, err := numericID(href)
		if err != nil {
			return "", err
		}
		raw = strings.ReplaceAll(r.Template, idPlaceholder, id)
	case Template:
		raw = strings.ReplaceAll(r.Template, hrefPlaceholder, href)
	default:
		return "", fmt.Errorf("unknown url rule %d", r.Kind)
	}
	return canonicalAbsolute(raw)
}

// numericID takes the last digit run of the href's final path segment,
// falling back to the id query value and then any all-digit query value.
func numericID(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if last := segments[len(segments)-1]; last != "" {
		if runs := digitRun.FindAllString(last, -1); len(runs) > 0 {
			return runs[len(runs)-1], nil
		}
	}
	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, idQueryParameterKey) && isDigits(query.Get(k)) {
			return query.Get(k), nil
		}
	}
	for _, k := range keys {
		if v := query.Get(k); isDigits(v) {
			return v, nil
		}
	}
	return "", fmt.Errorf("no numeric id in href %q", href)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func canonicalAbsolute(raw string) (string, error) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	if !IsAbsoluteHTTP(normalized) {
		return "", fmt.Errorf("detail url %q is not an absolute http(s) url", raw)
	}
	return normalized, nil
}

// IsAbsoluteHTTP reports whether raw is an http(s) URL with a host.
func IsAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PageURL returns the list URL for a 1-based page index. Page 1 is the base
// URL unmodified.
func PageURL(listURL string, page int) (string, error) {
	if page <= 1 {
		return listURL, nil
	}
	u, err := url.Parse(listURL)
	if err != nil {
		return "", fmt.Errorf("parse list url: %w", err)
	}
	q := u.Query()
	q.Set(pageQueryParameter, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, and sorts query parameters.
// It also removes fragments.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	// Lowercase scheme and host
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Remove default ports
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	// Remove fragment
	u.Fragment = ""

	// Sort query parameters
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String(), nil
}
