// Package ingest turns an RSS feed into articles ready for correlation:
// it parses feed XML, cleans item markup, fetches full article text where
// possible and derives stable article IDs from URLs.
package ingest

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/vigil-intel/vigil/pkg/common"
	"github.com/vigil-intel/vigil/pkg/logger"
)

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Encoded     string `xml:"encoded"`
	PubDate     string `xml:"pubDate"`
}

// pubDateFormats covers the date layouts seen in security news feeds.
var pubDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// ParseFeed decodes RSS XML into articles. Items without a link are
// skipped; items with an unparseable date keep a zero PublishedAt for the
// engine to fill at ingestion time.
func ParseFeed(data []byte) ([]*common.Article, error) {
	var doc rssDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	articles := make([]*common.Article, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			logger.Debug("skipping feed item without link", "title", item.Title)
			continue
		}

		body := item.Encoded
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}

		articles = append(articles, &common.Article{
			ID:          ArticleID(link),
			Title:       CleanHTML(item.Title),
			URL:         link,
			Content:     CleanHTML(body),
			PublishedAt: parsePubDate(item.PubDate),
		})
	}
	return articles, nil
}

func parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range pubDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	logger.Debug("unparseable feed date", "value", raw)
	return time.Time{}
}
