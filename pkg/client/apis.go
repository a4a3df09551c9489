package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/daemon"
	"github.com/ess-reader/ess-reader/pkg/events"
	"github.com/ess-reader/ess-reader/pkg/types"
)

func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	var v T
	ret, err := c.Get(ctx, path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to decode response of %s", path)
	}
	return v, nil
}

// GetReading returns the last reading forwarded by the daemon.
func (c *Client) GetReading(ctx context.Context) (types.Reading, error) {
	r, err := getJSON[types.Reading](ctx, c, "/reading")
	if err != nil {
		return r, pkgerrors.Wrapf(err, "failed to get last reading")
	}
	return r, nil
}

// GetHealth returns the health of the poll loop. A stale daemon is not an
// error.
func (c *Client) GetHealth(ctx context.Context) (daemon.Health, error) {
	var h daemon.Health
	ret, err := c.Get(ctx, "/healthz")
	if err != nil && ret == "" {
		return h, pkgerrors.Wrapf(err, "failed to get health")
	}
	if err := json.Unmarshal([]byte(ret), &h); err != nil {
		return h, pkgerrors.Wrapf(err, "failed to decode health")
	}
	return h, nil
}

func (c *Client) GetVersion(ctx context.Context) (daemon.VersionInfo, error) {
	v, err := getJSON[daemon.VersionInfo](ctx, c, "/version")
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to get daemon version")
	}
	return v, nil
}

// GetConfig returns the daemon's effective config with secrets redacted.
func (c *Client) GetConfig(ctx context.Context) (*config.RawFileConfig, error) {
	rc, err := getJSON[config.RawFileConfig](ctx, c, "/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get daemon config")
	}
	return &rc, nil
}

// SubscribeEvents streams the daemon's server-sent events until ctx is done
// or the daemon closes the stream. The returned channel is closed then.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams have no overall deadline.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to subscribe to events")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("got %d subscribing to events", resp.StatusCode)
	}

	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		var ev events.Event
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				if ev.Name == "" && len(ev.Data) == 0 {
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
				ev = events.Event{}
			case strings.HasPrefix(line, "event:"):
				ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.Data = append(ev.Data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
			}
		}
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			logrus.Debugf("event stream ended: %v", err)
		}
	}()
	return ch, nil
}
