package ess

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/version"
)

const (
	// DefaultPort is the port the ESS web interface listens on.
	DefaultPort = 21710
	statusPath  = "/f0"
)

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// Fetcher downloads and parses the ESS status page.
type Fetcher struct {
	client *http.Client
	url    string
}

// NewFetcher returns a Fetcher for the ESS at ip:port. A port <= 0 means
// DefaultPort.
//
// The client has no timeout of its own; a request lasts as long as the
// transport allows.
func NewFetcher(ip string, port int) *Fetcher {
	if port <= 0 {
		port = DefaultPort
	}
	return &Fetcher{
		client: &http.Client{
			Transport: &userAgentTransport{
				transport: http.DefaultTransport,
				userAgent: "ess-reader/" + version.Version,
			},
		},
		url: "http://" + net.JoinHostPort(ip, strconv.Itoa(port)) + statusPath,
	}
}

// URL returns the status page address.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch issues exactly one GET for the status page.
func (f *Fetcher) Fetch(ctx context.Context) (*goquery.Document, error) {
	logrus.WithField("url", f.url).Debug("get stats from ess")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errdefs.Transport(errdefs.StageFetch, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		logrus.WithField("url", f.url).Debug("failed to get stats from ess")
		return nil, errdefs.Transport(errdefs.StageFetch, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errdefs.Transport(errdefs.StageFetch, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.url))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errdefs.Transport(errdefs.StageFetch, fmt.Errorf("failed to read status page: %w", err))
	}

	return doc, nil
}
