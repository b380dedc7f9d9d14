package dataflows

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const redditBaseURL = "https://www.reddit.com"

type RedditClient struct {
	client *resty.Client
}

type redditResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data redditPostData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPostData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

func NewRedditClient(userAgent string) *RedditClient {
	return NewRedditClientWithBase(redditBaseURL, userAgent)
}

func NewRedditClientWithBase(base, userAgent string) *RedditClient {
	if userAgent == "" {
		userAgent = "tradecortex/1.0"
	}
	return &RedditClient{
		client: resty.New().
			SetBaseURL(base).
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
	}
}

// Search returns posts matching query created in [start, end], newest first.
func (r *RedditClient) Search(ctx context.Context, query string, start, end time.Time, limit int) ([]SocialPost, error) {
	var out redditResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     query,
			"sort":  "new",
			"t":     "month",
			"limit": strconv.Itoa(100),
		}).
		SetResult(&out).
		Get("/search.json")
	if err != nil {
		return nil, fmt.Errorf("reddit search: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit search: status %d", resp.StatusCode())
	}

	var posts []SocialPost
	for _, child := range out.Data.Children {
		p := child.Data
		created := time.Unix(int64(p.CreatedUTC), 0)
		if created.Before(start) || created.After(end.AddDate(0, 0, 1)) {
			continue
		}
		posts = append(posts, SocialPost{
			ID:        p.ID,
			Title:     p.Title,
			Content:   p.Selftext,
			Subreddit: p.Subreddit,
			Score:     p.Score,
			Comments:  p.NumComments,
			CreatedAt: created,
		})
		if limit > 0 && len(posts) >= limit {
			break
		}
	}
	return posts, nil
}
