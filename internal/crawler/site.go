package crawler

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Rule parses the site's URL pattern.
func (s Site) Rule() (URLRule, error) {
	return ParseURLRule(s.URLPattern)
}

// PayBandDefault returns the configured fallback pay-band label.
func (s Site) PayBandDefault() string {
	if s.DefaultPayBand == "" {
		return DefaultPayBand
	}
	return s.DefaultPayBand
}

// PageLimit returns MaxPages or the default when unset.
func (s Site) PageLimit() int {
	if s.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return s.MaxPages
}

// Validate rejects sites that cannot be scraped at all. An empty list-item
// selector is valid: it simply yields no candidates.
func (s Site) Validate() error {
	if !IsAbsoluteHTTP(s.ListURL) {
		return fmt.Errorf("%w: %s: list url %q is not an absolute http(s) url", ErrInvalidSite, s.Name, s.ListURL)
	}
	if _, err := s.Rule(); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	selectors := map[string]string{
		"list_selector":               s.List.Item,
		"title_selector":              s.List.Title,
		"location_selector":           s.List.Location,
		"salary_selector":             s.List.Salary,
		"closing_selector":            s.List.Closing,
		"detail_location_selector":    s.Detail.Location,
		"detail_salary_selector":      s.Detail.Salary,
		"detail_closing_selector":     s.Detail.Closing,
		"detail_description_selector": s.Detail.Description,
	}
	for column, sel := range selectors {
		if sel == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("%w: %s: %s %q: %v", ErrInvalidSite, s.Name, column, sel, err)
		}
	}
	return nil
}
