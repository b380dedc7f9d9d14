package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const googleNewsRSSURL = "https://news.google.com/rss/search"

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      struct {
		Text string `xml:",chardata"`
		URL  string `xml:"url,attr"`
	} `xml:"source"`
}

type GoogleNewsClient struct {
	client   *resty.Client
	endpoint string
}

func NewGoogleNewsClient() *GoogleNewsClient {
	return &GoogleNewsClient{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "Mozilla/5.0 (compatible; tradecortex/1.0)"),
		endpoint: googleNewsRSSURL,
	}
}

// NewGoogleNewsClientWithBase points the client at an alternate RSS endpoint.
func NewGoogleNewsClientWithBase(base string) *GoogleNewsClient {
	c := NewGoogleNewsClient()
	c.endpoint = base
	return c
}

// Search returns up to limit articles for query published in [start, end].
func (g *GoogleNewsClient) Search(ctx context.Context, query string, start, end time.Time, limit int) ([]NewsArticle, error) {
	q := fmt.Sprintf("%s after:%s before:%s", query, start.Format("2006-01-02"), end.AddDate(0, 0, 1).Format("2006-01-02"))

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    q,
			"hl":   "en-US",
			"gl":   "US",
			"ceid": "US:en",
		}).
		Get(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("google news: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("google news: status %d", resp.StatusCode())
	}

	return parseGoogleNewsRSS(resp.Body(), limit)
}

func parseGoogleNewsRSS(body []byte, limit int) ([]NewsArticle, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS XML: %w", err)
	}

	articles := make([]NewsArticle, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if limit > 0 && len(articles) >= limit {
			break
		}
		publishedAt, err := time.Parse(time.RFC1123, item.PubDate)
		if err != nil {
			publishedAt, _ = time.Parse(time.RFC1123Z, item.PubDate)
		}
		articles = append(articles, NewsArticle{
			Title:       item.Title,
			Summary:     stripHTML(item.Description),
			URL:         item.Link,
			Source:      item.Source.Text,
			PublishedAt: publishedAt,
		})
	}
	return articles, nil
}

// Google wraps descriptions in anchor/font markup.
func stripHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
