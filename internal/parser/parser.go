// Package parser extracts job cards and detail fields from council HTML using
// per-site CSS selectors.
package parser

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
)

// MaxDescriptionLength bounds description text, in characters.
const MaxDescriptionLength = 1000

// Parser turns raw HTML into candidates and detail fields. It is safe for
// concurrent use.
type Parser struct {
	policy *bluemonday.Policy
}

// New returns a Parser that reduces markup to plain text.
func New() *Parser {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Parser{policy: policy}
}

// ExtractList returns one candidate per list item that has both a title and a
// link. Malformed cards are dropped but still counted in Matched. An empty
// item selector yields nothing.
func (p *Parser) ExtractList(body string, sel crawler.ListSelectors) (crawler.ListPage, error) {
	var page crawler.ListPage
	if strings.TrimSpace(sel.Item) == "" {
		return page, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return page, fmt.Errorf("parse list page: %w", err)
	}

	items := doc.Find(sel.Item)
	page.Matched = items.Length()
	items.Each(func(_ int, item *goquery.Selection) {
		titleNode := item
		if sel.Title != "" {
			titleNode = item.Find(sel.Title).First()
		}
		if titleNode.Length() == 0 {
			return
		}
		title := p.text(titleNode)
		href := linkOf(titleNode)
		if title == "" || href == "" {
			return
		}
		page.Candidates = append(page.Candidates, crawler.Candidate{
			Title:    title,
			Href:     href,
			Location: p.field(item, sel.Location),
			Salary:   p.field(item, sel.Salary),
			Closing:  p.field(item, sel.Closing),
		})
	})
	return page, nil
}

// ExtractDetail applies the detail selectors. Selectors that match nothing
// leave their field empty.
func (p *Parser) ExtractDetail(body string, sel crawler.DetailSelectors) (crawler.Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return crawler.Detail{}, fmt.Errorf("parse detail page: %w", err)
	}
	root := doc.Selection
	return crawler.Detail{
		Location:    p.field(root, sel.Location),
		Salary:      p.field(root, sel.Salary),
		Closing:     p.field(root, sel.Closing),
		Description: Truncate(p.field(root, sel.Description), MaxDescriptionLength),
	}, nil
}

func (p *Parser) field(scope *goquery.Selection, selector string) string {
	if strings.TrimSpace(selector) == "" {
		return ""
	}
	return p.text(scope.Find(selector).First())
}

// text flattens the first node of s to whitespace-collapsed plain text.
func (p *Parser) text(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	markup, err := s.First().Html()
	if err != nil {
		return strings.Join(strings.Fields(s.First().Text()), " ")
	}
	plain := html.UnescapeString(p.policy.Sanitize(markup))
	return strings.Join(strings.Fields(plain), " ")
}

// linkOf finds the href for a title node: its own, a descendant anchor's, or
// an enclosing anchor's.
func linkOf(s *goquery.Selection) string {
	if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if href, ok := s.Find("a[href]").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if href, ok := s.Closest("a[href]").Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}

// Truncate cuts s to at most limit characters.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
