// Package news polls RSS feeds for child-safety incidents and extracts suspect names
package news

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/kidregistry/internal/extract"
)

// Item is one feed entry
type Item struct {
	Title       string
	Link        string
	Summary     string
	Publisher   string
	PublishedAt time.Time
}

type rss struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// ParseFeed decodes an RSS 2.0 document
func ParseFeed(body string) ([]Item, error) {
	var doc rss
	dec := xml.NewDecoder(strings.NewReader(body))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}

	items := make([]Item, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		publisher := strings.TrimSpace(it.Source)
		title := strings.TrimSpace(it.Title)
		// aggregators append " - Publisher" to the headline
		if publisher != "" {
			title = strings.TrimSuffix(title, " - "+publisher)
		}
		items = append(items, Item{
			Title:       title,
			Link:        strings.TrimSpace(it.Link),
			Summary:     plainText(it.Description),
			Publisher:   publisher,
			PublishedAt: parsePubDate(it.PubDate),
		})
	}
	return items, nil
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// plainText strips the HTML some feeds embed in descriptions
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := extract.Parse(s)
	if err != nil {
		return s
	}
	return extract.Text(doc)
}
