// Package sites loads the per-council site table.
//
// The table is a CSV file with a header row. Column names are matched
// case-insensitively, unknown columns are ignored and optional columns may be
// absent. Rows without a list URL are skipped.
package sites

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
)

// column names, with their accepted aliases.
var aliases = map[string]string{
	"name":                        "name",
	"council":                     "name",
	"list_url":                    "list_url",
	"url":                         "list_url",
	"max_pages":                   "max_pages",
	"list_selector":               "list_selector",
	"title_selector":              "title_selector",
	"title_sel":                   "title_selector",
	"salary_selector":             "salary_selector",
	"salary_sel":                  "salary_selector",
	"location_selector":           "location_selector",
	"location_sel":                "location_selector",
	"closing_selector":            "closing_selector",
	"closing_sel":                 "closing_selector",
	"detail_salary_selector":      "detail_salary_selector",
	"detail_location_selector":    "detail_location_selector",
	"detail_closing_selector":     "detail_closing_selector",
	"detail_description_selector": "detail_description_selector",
	"url_pattern":                 "url_pattern",
	"pay_band":                    "pay_band",
}

// Load reads the site table at path. A missing file is crawler.ErrConfigMissing.
func Load(path string) ([]crawler.Site, error) {
	// #nosec G304 -- the site table path is operator configuration.
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: site table %s", crawler.ErrConfigMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open site table: %w", err)
	}
	defer func() { _ = f.Close() }()

	sites, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sites, nil
}

// Parse reads a site table from r.
func Parse(r io.Reader) ([]crawler.Site, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: site table is empty", crawler.ErrConfigMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if canonical, ok := aliases[key]; ok {
			if _, taken := index[canonical]; !taken {
				index[canonical] = i
			}
		}
	}
	if _, ok := index["list_url"]; !ok {
		return nil, fmt.Errorf("%w: site table has no list_url column", crawler.ErrConfigMissing)
	}

	var out []crawler.Site
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		row := func(column string) string {
			i, ok := index[column]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if row("list_url") == "" {
			continue
		}
		out = append(out, siteFromRow(row))
	}
	return out, nil
}

func siteFromRow(row func(string) string) crawler.Site {
	listURL := row("list_url")
	name := row("name")
	if name == "" {
		name = hostOf(listURL)
	}
	return crawler.Site{
		Name:     name,
		ListURL:  listURL,
		MaxPages: maxPages(row("max_pages")),
		List: crawler.ListSelectors{
			Item:     row("list_selector"),
			Title:    row("title_selector"),
			Location: row("location_selector"),
			Salary:   row("salary_selector"),
			Closing:  row("closing_selector"),
		},
		Detail: crawler.DetailSelectors{
			Location:    row("detail_location_selector"),
			Salary:      row("detail_salary_selector"),
			Closing:     row("detail_closing_selector"),
			Description: row("detail_description_selector"),
		},
		URLPattern:     row("url_pattern"),
		DefaultPayBand: row("pay_band"),
	}
}

// maxPages accepts spreadsheet-style values such as "3.0".
func maxPages(raw string) int {
	if raw == "" {
		return crawler.DefaultMaxPages
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 1 && f == float64(int(f)) {
		return int(f)
	}
	return crawler.DefaultMaxPages
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.ToLower(u.Hostname())
}
