package monitor

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req"
)

// Client queries a monitor's REST API
type Client struct {
	base string
	r    *req.Req
}

// NewClient creates a client for the monitor at addr ("host:port" or a URL).
func NewClient(addr string, timeout time.Duration) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	r := req.New()
	r.SetTimeout(timeout)
	return &Client{base: strings.TrimRight(base, "/"), r: r}
}

// BaseURL returns the monitor address the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// WebSocketURL returns the URL of the live reading feed.
func (c *Client) WebSocketURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("invalid monitor address %q: %w", c.base, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *Client) getJSON(path string, v interface{}) error {
	resp, err := c.r.Get(c.base+path, req.Header{"Accept": "application/json"})
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.base, err)
	}
	if code := resp.Response().StatusCode; code != 200 {
		return fmt.Errorf("monitor returned %s", resp.Response().Status)
	}
	if err := resp.ToJSON(v); err != nil {
		return fmt.Errorf("failed to decode monitor response: %w", err)
	}
	return nil
}

// Device fetches the current reading.
func (c *Client) Device() (*Reading, error) {
	reading := &Reading{}
	if err := c.getJSON("/api/device", reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// Pages fetches the page counters.
func (c *Client) Pages() (map[string]PageStat, error) {
	pages := make(map[string]PageStat)
	if err := c.getJSON("/api/pages", &pages); err != nil {
		return nil, err
	}
	return pages, nil
}
