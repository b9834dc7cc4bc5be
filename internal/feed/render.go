package feed

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
)

const notSpecified = "Not specified"

// EntryFor renders a job as a feed entry.
func EntryFor(job crawler.Job) Entry {
	return Entry{
		ID:          job.ID,
		Title:       fmt.Sprintf("%s – %s", job.Title, job.Site),
		Link:        job.ID,
		Description: describe(job),
		Published:   job.DiscoveredAt,
	}
}

func describe(job crawler.Job) string {
	var b strings.Builder
	field := func(label, value string) {
		if value == "" {
			value = notSpecified
		}
		fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", label, html.EscapeString(value))
	}
	field("Location", job.Location)
	field("Salary", job.Salary)
	field("Pay Band", job.PayBand)
	if job.Closing != "" {
		field("Closing", job.Closing)
	}
	if job.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(job.Description))
	}
	return b.String()
}

// encode writes f as RSS 2.0.
func encode(f *Feed, now time.Time) ([]byte, error) {
	doc := &feeds.Feed{
		Title:       f.Title,
		Link:        &feeds.Link{Href: f.Link},
		Description: f.Description,
		Updated:     now,
		Items:       make([]*feeds.Item, 0, len(f.Entries)),
	}
	for _, e := range f.Entries {
		doc.Items = append(doc.Items, &feeds.Item{
			Id:          e.ID,
			Title:       e.Title,
			Link:        &feeds.Link{Href: e.Link},
			Description: e.Description,
			Created:     e.Published,
		})
	}

	rss := (&feeds.Rss{Feed: doc}).RssFeed()
	rss.Language = f.Language
	out, err := feeds.ToXML(rss)
	if err != nil {
		return nil, fmt.Errorf("render rss: %w", err)
	}
	return []byte(out), nil
}
