// Package client talks to the status API of a running ess-reader daemon.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultAddr is the status address used when none is configured.
const DefaultAddr = "127.0.0.1:9710"

// Client is a struct for communicating with the daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the daemon listening on addr, given as
// host:port or as a URL.
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL:    strings.TrimRight(addr, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends a request to the daemon and returns the response body.
func (c *Client) Send(ctx context.Context, method string, path string) (string, error) {
	url := c.baseURL + path
	logrus.WithFields(logrus.Fields{
		"method": method,
		"url":    url,
	}).Debug("sending request")

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return "", ErrDaemonNotRunning
		}
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	body := string(b)

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, fmt.Errorf("got %d: %s", resp.StatusCode, body)
	}

	return body, nil
}

// Get sends a GET request to the daemon.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	return c.Send(ctx, http.MethodGet, path)
}
