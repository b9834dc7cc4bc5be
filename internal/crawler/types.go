// Package crawler defines core types shared across subsystems.
package crawler

import "time"

// Default values applied when a site row leaves a column blank.
const (
	DefaultMaxPages = 5
	DefaultPayBand  = "Not specified"
	DefaultLocation = "VIC"
)

// ListSelectors locate job cards and their list-scoped fields on a list page.
// Field selectors are evaluated relative to each matched item.
type ListSelectors struct {
	Item     string
	Title    string
	Location string
	Salary   string
	Closing  string
}

// DetailSelectors locate fields on a job's detail page.
type DetailSelectors struct {
	Location    string
	Salary      string
	Closing     string
	Description string
}

// Site is the declarative description of one council careers site.
// It is loaded once per run and never mutated.
type Site struct {
	Name           string
	ListURL        string
	MaxPages       int
	List           ListSelectors
	Detail         DetailSelectors
	URLPattern     string
	DefaultPayBand string
}

// Job is a single listing. ID is the canonical detail URL.
type Job struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Site         string    `json:"site"`
	Location     string    `json:"location"`
	Salary       string    `json:"salary"`
	PayBand      string    `json:"pay_band"`
	Closing      string    `json:"closing,omitempty"`
	Description  string    `json:"description"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Candidate is one job card pulled from a list page.
type Candidate struct {
	Title    string
	Href     string
	Location string
	Salary   string
	Closing  string
}

// ListPage is what a list page yielded. Matched counts every node the item
// selector hit, including malformed cards that produced no candidate.
type ListPage struct {
	Matched    int
	Candidates []Candidate
}

// Detail holds the fields extracted from a detail page. Unmatched selectors
// leave their field empty.
type Detail struct {
	Location    string
	Salary      string
	Closing     string
	Description string
}

// ScrapeResult is the transient outcome of scraping one site.
type ScrapeResult struct {
	Site          string
	Jobs          []Job
	PagesVisited  int
	FetchFailures int
}

// SiteReport summarises one site's contribution to a run.
type SiteReport struct {
	ScrapeResult
	Err error
}

// RunResult aggregates every site's jobs in site order, then discovery order.
type RunResult struct {
	Jobs  []Job
	Sites []SiteReport
}
