package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/scanwedge/internal/db"
	"github.com/banshee-data/scanwedge/internal/httputil"
)

// Client talks to a running wedge's API.
type Client struct {
	HTTP    httputil.HTTPClient
	BaseURL string
}

// NewClient returns a client for the server listening on addr, which may be
// a bare host:port.
func NewClient(addr string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{HTTP: c, BaseURL: strings.TrimRight(addr, "/")}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return httputil.DoJSON(c.HTTP, req, out)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (Modes, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return Modes{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var m Modes
	err = httputil.DoJSON(c.HTTP, req, &m)
	return m, err
}

func enabledForm(enabled *bool) url.Values {
	form := url.Values{}
	if enabled != nil {
		form.Set("enabled", strconv.FormatBool(*enabled))
	}
	return form
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var st StatusResponse
	err := c.get(ctx, "/api/status", &st)
	return st, err
}

// Scans fetches up to limit stored scans, newest first.
func (c *Client) Scans(ctx context.Context, limit int) ([]db.Scan, error) {
	var scans []db.Scan
	err := c.get(ctx, fmt.Sprintf("/api/scans?limit=%d", limit), &scans)
	return scans, err
}

// SetScanning toggles scanning when enabled is nil.
func (c *Client) SetScanning(ctx context.Context, enabled *bool) (Modes, error) {
	return c.post(ctx, "/api/scan", enabledForm(enabled))
}

// SetDebug toggles debug mode when enabled is nil.
func (c *Client) SetDebug(ctx context.Context, enabled *bool) (Modes, error) {
	return c.post(ctx, "/api/debug", enabledForm(enabled))
}

// SetBaud moves to the next candidate baud when index is nil.
func (c *Client) SetBaud(ctx context.Context, index *int) (Modes, error) {
	form := url.Values{}
	if index != nil {
		form.Set("index", strconv.Itoa(*index))
	}
	return c.post(ctx, "/api/baud", form)
}
