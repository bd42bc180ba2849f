package onionoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/relaymetrics/relay-monitor/pkg/data"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

const (
	DefaultRetryAttempts uint          = 3
	DefaultRetryDelay    time.Duration = 2 * time.Second

	clientTimeout = 60 * time.Second
)

const (
	detailsPath   = "/details?type=relay&running=true"
	uptimePath    = "/uptime?type=relay&running=true"
	bandwidthPath = "/bandwidth?type=relay&running=true"
)

type detailsDocument struct {
	RelaysPublished string          `json:"relays_published"`
	Relays          []data.RawRelay `json:"relays"`
}

type uptimeDocument struct {
	Relays []data.RawUptime `json:"relays"`
}

type bandwidthDocument struct {
	Relays []data.RawBandwidth `json:"relays"`
}

// Client fetches relay documents from an Onionoo endpoint.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger

	attempts uint
	delay    time.Duration
	now      func() time.Time
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.delay = delay
	}
}

func NewClient(endpoint string, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q is not an absolute url", endpoint)
	}

	c := &Client{
		endpoint: strings.TrimRight(u.String(), "/"),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
			},
			Timeout: clientTimeout,
		},
		logger:   logger,
		attempts: DefaultRetryAttempts,
		delay:    DefaultRetryDelay,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) String() string {
	return c.endpoint
}

// FetchSnapshot downloads the details, uptime and bandwidth documents. The
// snapshot time is the publication time of the details document when it
// carries one.
func (c *Client) FetchSnapshot(ctx context.Context) (*data.Snapshot, error) {
	logger := c.logger.Sugar()

	details := &detailsDocument{}
	err := c.fetchDocument(ctx, detailsPath, details)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch details document")
	}

	uptime := &uptimeDocument{}
	err = c.fetchDocument(ctx, uptimePath, uptime)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch uptime document")
	}

	bandwidth := &bandwidthDocument{}
	err = c.fetchDocument(ctx, bandwidthPath, bandwidth)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch bandwidth document")
	}

	fetchedAt := c.now().UTC()
	if published, err := types.TimeFromString(details.RelaysPublished); err == nil {
		fetchedAt = published
	}

	logger.Infow("fetched snapshot", "endpoint", c.endpoint, "relays", len(details.Relays), "uptime", len(uptime.Relays), "bandwidth", len(bandwidth.Relays), "published", fetchedAt)

	return &data.Snapshot{
		FetchedAt: fetchedAt,
		Relays:    details.Relays,
		Uptime:    uptime.Relays,
		Bandwidth: bandwidth.Relays,
	}, nil
}

func (c *Client) fetchDocument(ctx context.Context, path string, dst interface{}) error {
	logger := c.logger.Sugar()

	return retry.Do(
		func() error {
			err := c.get(ctx, path, dst)
			if err != nil {
				logger.Warnw("could not fetch document", "path", path, "error", err, "retrying", c.delay)
			}
			return err
		},
		retry.Context(ctx),
		retry.DelayType(retry.FixedDelay),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) get(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		// Client errors will not go away by asking again.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Unrecoverable(err)
		}
		return err
	}

	err = json.NewDecoder(resp.Body).Decode(dst)
	if err != nil {
		return fmt.Errorf("could not decode response: %v", err)
	}
	return nil
}

// LoadSnapshotFile reads a snapshot saved as one JSON document with relays,
// uptime and bandwidth keys.
func LoadSnapshotFile(path string) (*data.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read snapshot file")
	}

	snapshot := &data.Snapshot{}
	err = json.Unmarshal(raw, snapshot)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode snapshot file %s", path)
	}
	if snapshot.FetchedAt.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not stat snapshot file")
		}
		snapshot.FetchedAt = info.ModTime().UTC()
	}
	return snapshot, nil
}

// FileSource serves a saved snapshot in place of a live endpoint.
type FileSource struct {
	Path string
}

func (f *FileSource) FetchSnapshot(ctx context.Context) (*data.Snapshot, error) {
	return LoadSnapshotFile(f.Path)
}
