package okxnft

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const defaultBaseURL = "https://www.okx.com"

// The marketplace answers CDN-guarded requests only when a browser-looking
// User-Agent is present.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=okxnft_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the marketplace NFT API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client requests go through.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the marketplace client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new marketplace API client.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	c.header.Set("User-Agent", defaultUserAgent)
	for _, option := range options {
		option(c)
	}
	return c
}

// Collection is the slice of the collection detail payload we consume.
type Collection struct {
	FloorPrice json.Number `json:"floorPrice"`
}

// CollectionDetail retrieves floor-price detail for one collection slug on
// one chain. The API wraps data either as a single object or a one-element
// array depending on endpoint version; both are accepted.
func (c *Client) CollectionDetail(ctx context.Context, slug, chain string) (Collection, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("chain", chain)
	reqURL := fmt.Sprintf("%s/api/v5/mktplace/nft/collection/detail?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return Collection{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Collection{}, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Collection{}, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Collection{}, fmt.Errorf("decoding response: %w", err)
	}
	if body.Code != "0" || len(body.Data) == 0 {
		return Collection{}, fmt.Errorf("api error: code=%q msg=%q", body.Code, body.Msg)
	}

	var list []Collection
	if err := json.Unmarshal(body.Data, &list); err == nil {
		if len(list) == 0 {
			return Collection{}, fmt.Errorf("empty collection data")
		}
		return list[0], nil
	}
	var one Collection
	if err := json.Unmarshal(body.Data, &one); err != nil {
		return Collection{}, fmt.Errorf("decoding collection data: %w", err)
	}
	return one, nil
}
