package jin10

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxItems = 20

type Config struct {
	Endpoint string // flash list API base
	AppID    string // static app header the API insists on
	Portal   string // linked when a flash carries no URL of its own
	Source   string // display label for the feed
	Timeout  time.Duration
}

// Client fetches financial flash-news headlines.
type Client struct {
	client *resty.Client
	portal string
	source string
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://flash-api.jin10.com"
	}
	if cfg.AppID == "" {
		cfg.AppID = "bVBF4FyRTn5NJF5n"
	}
	if cfg.Portal == "" {
		cfg.Portal = "https://www.jin10.com"
	}
	if cfg.Source == "" {
		cfg.Source = "金十数据"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(cfg.Endpoint)
	client.SetTimeout(cfg.Timeout)
	client.SetHeaders(map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"x-app-id":   cfg.AppID,
		"x-version":  "1.0.0",
		"Origin":     cfg.Portal,
		"Referer":    cfg.Portal + "/",
	})

	return &Client{client: client, portal: cfg.Portal, source: cfg.Source}
}

// Item is one normalized headline.
type Item struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Time   string `json:"time"`
	Source string `json:"source"`
}

type flashResponse struct {
	Status int `json:"status"`
	Data   []struct {
		Time string `json:"time"`
		Data struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			Link    string `json:"link"`
		} `json:"data"`
	} `json:"data"`
}

var tagStripper = strings.NewReplacer("<b>", "", "</b>", "", "<br/>", " ")

// Flashes returns the newest headlines, capped at 20.
func (c *Client) Flashes(ctx context.Context) ([]Item, error) {
	var body flashResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"channel": "1",
			"vip":     "1",
			"t":       strconv.FormatInt(time.Now().UnixMilli(), 10),
		}).
		SetResult(&body).
		Get("/get_flash_list")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("flash list: status %d", resp.StatusCode())
	}
	if body.Status != 200 {
		return nil, fmt.Errorf("flash list: api status %d", body.Status)
	}

	items := make([]Item, 0, len(body.Data))
	for _, raw := range body.Data {
		// flashes carry a title, a bare content blob, or both
		title := raw.Data.Title
		if title == "" {
			title = raw.Data.Content
		}
		title = strings.TrimSpace(tagStripper.Replace(title))
		if title == "" {
			continue
		}
		link := raw.Data.Link
		if link == "" {
			link = c.portal
		}
		items = append(items, Item{
			Title:  title,
			URL:    link,
			Time:   shortTime(raw.Time),
			Source: c.source,
		})
		if len(items) == maxItems {
			break
		}
	}
	return items, nil
}

// shortTime compacts "2026-01-08 18:25:30" to "01-08 18:25"; anything else
// passes through unchanged.
func shortTime(s string) string {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return s
	}
	return t.Format("01-02 15:04")
}
