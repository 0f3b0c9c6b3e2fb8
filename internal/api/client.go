package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"streamcharts/internal/activity"
	"streamcharts/internal/config"
	"streamcharts/internal/stream"
)

const (
	sensorDataPath   = "/api/1.0/activity_sensordata"
	metadataPath     = "/api/1.0/activity_metadata"
	deleteSensorPath = "/api/1.0/delete_sensor_data"
)

// ErrInvalidActivityID is returned for IDs that are not UUIDs
var ErrInvalidActivityID = errors.New("invalid activity ID")

// Client talks to the sensor data server
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a client for baseURL authorized by tokenSource.
// A nil tokenSource sends unauthenticated requests.
func NewClient(ctx context.Context, baseURL string, tokenSource oauth2.TokenSource) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if tokenSource != nil {
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, httpClient), tokenSource)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		rateLimiter: DefaultRateLimiter(),
	}
}

// NewFromConfig builds a client from the api section of the config.
// A static access token wins over client credentials. Tokens issued for
// client credentials are kept in cache when it is non-nil.
func NewFromConfig(ctx context.Context, cfg config.APIConfig, cache TokenCache) *Client {
	var ts oauth2.TokenSource
	switch {
	case cfg.AccessToken != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	case cfg.ClientID != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ts = cc.TokenSource(ctx)
		if cache != nil {
			ts = NewCachedTokenSource(ctx, ts, cache)
		}
	}
	return NewClient(ctx, cfg.BaseURL, ts)
}

// metadata is the activity_metadata response body
type metadata struct {
	ID   string   `json:"activity_id"`
	Name string   `json:"name"`
	Type string   `json:"Type"`
	Time *float64 `json:"Time"`
}

// Meta fetches the name, type and start time of an activity
func (c *Client) Meta(ctx context.Context, id string) (activity.Meta, error) {
	if err := validateID(id); err != nil {
		return activity.Meta{}, err
	}

	params := url.Values{}
	params.Set("activity_id", id)

	var md metadata
	if err := c.getJSON(ctx, metadataPath, params, &md); err != nil {
		return activity.Meta{}, fmt.Errorf("fetching activity metadata: %w", err)
	}

	meta := activity.Meta{ID: id, Name: md.Name, Type: md.Type}
	if md.Time != nil {
		meta.Start = time.Unix(int64(*md.Time), 0)
	}
	return meta, nil
}

// FetchStreams fetches every known sensor stream of an activity
func (c *Client) FetchStreams(ctx context.Context, id string) (stream.Map, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("activity_id", id)
	params.Set("sensors", strings.Join(stream.Vocabulary, ","))

	var m stream.Map
	if err := c.getJSON(ctx, sensorDataPath, params, &m); err != nil {
		return nil, fmt.Errorf("fetching sensor data: %w", err)
	}
	return m, nil
}

// FetchSince fetches the records of one stream recorded at or after sinceMs
func (c *Client) FetchSince(ctx context.Context, id, sensor string, sinceMs int64) ([]stream.Record, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("activity_id", id)
	params.Set("sensors", sensor)
	params.Set("since", strconv.FormatInt(sinceMs, 10))

	var m stream.Map
	if err := c.getJSON(ctx, sensorDataPath, params, &m); err != nil {
		return nil, fmt.Errorf("fetching %s since %d: %w", sensor, sinceMs, err)
	}

	// Servers that ignore "since" return the whole stream
	var out []stream.Record
	for _, rec := range m[sensor] {
		if atOrAfter(sensor, rec, sinceMs) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// DeleteSensorData removes one stream from an activity
func (c *Client) DeleteSensorData(ctx context.Context, id, sensor string) error {
	if err := validateID(id); err != nil {
		return err
	}

	body, err := json.Marshal([]map[string]string{
		{"activity_id": id},
		{"sensor_name": sensor},
	})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, deleteSensorPath, nil, body)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", sensor, err)
	}
	resp.Body.Close()
	return nil
}

// RateLimitRemaining returns how many requests are left in the window
func (c *Client) RateLimitRemaining() int {
	return c.rateLimiter.Remaining()
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidActivityID, id)
	}
	return nil
}

// atOrAfter reports whether a record is not older than sinceMs. Records at
// sinceMs itself are kept so a sample sharing the latest timestamp that
// arrived after the previous fetch is not lost; the coordinator drops the
// ones it already has. Records without a readable timestamp are kept and
// left to the normalizer.
func atOrAfter(sensor string, rec stream.Record, sinceMs int64) bool {
	ts, ok := stream.RecordTime(sensor, rec)
	return !ok || ts >= sinceMs
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return resp, nil
}
