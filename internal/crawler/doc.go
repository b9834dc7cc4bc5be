// Package crawler holds the shared vocabulary of a scrape run: site
// definitions, job records, the URL-construction rules that turn a card's
// href into a canonical detail URL, the collaborator interfaces and the
// sentinel errors every other package wraps.
package crawler
