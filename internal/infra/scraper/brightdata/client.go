// Package brightdata is the scraping provider client. The provider has no Go
// SDK, so this speaks its dataset REST API directly.
package brightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://api.brightdata.com"
	DefaultDatasetID = "gd_l1viktl72bvl7bjuj0" // profile dataset
	defaultTimeout   = 30 * time.Second
	maxErrorBody     = 512
)

// ErrSnapshotNotReady is returned while the provider is still collecting.
var ErrSnapshotNotReady = errors.New("snapshot not ready")

type Client struct {
	BaseURL   string
	Token     string
	DatasetID string
	// WebhookAuth is sent back by the provider as the Authorization header
	// of every callback.
	WebhookAuth string
	HTTP        *http.Client
}

func NewClient(token, datasetID, webhookAuth string) *Client {
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	return &Client{
		BaseURL:     DefaultBaseURL,
		Token:       token,
		DatasetID:   datasetID,
		WebhookAuth: webhookAuth,
		HTTP:        &http.Client{Timeout: defaultTimeout},
	}
}

// Trigger starts a collection job for one profile and returns its snapshot id.
func (c *Client) Trigger(ctx context.Context, profileURL, callbackURL string) (string, error) {
	q := url.Values{}
	q.Set("dataset_id", c.DatasetID)
	q.Set("format", "json")
	q.Set("uncompressed_webhook", "true")
	q.Set("include_errors", "true")
	if callbackURL != "" {
		q.Set("endpoint", callbackURL)
	}
	if c.WebhookAuth != "" {
		q.Set("auth_header", c.WebhookAuth)
	}

	body, err := json.Marshal([]map[string]string{{"url": profileURL}})
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, "/datasets/v3/trigger?"+q.Encode(), body)
	if err != nil {
		return "", err
	}

	var out struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("decode trigger response: %w", err)
	}
	if out.SnapshotID == "" {
		return "", fmt.Errorf("trigger response has no snapshot_id")
	}
	return out.SnapshotID, nil
}

// FetchSnapshot downloads the collected items of a finished job.
func (c *Client) FetchSnapshot(ctx context.Context, jobID string) (json.RawMessage, error) {
	path := "/datasets/v3/snapshot/" + url.PathEscape(jobID) + "?format=json"
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("snapshot %s is not valid JSON", jobID)
	}
	// still running: the provider answers with a status object instead of data
	var status struct {
		Status string `json:"status"`
	}
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) && json.Unmarshal(body, &status) == nil {
		switch status.Status {
		case "running", "building", "collecting", "starting":
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotReady, status.Status)
		}
	}
	return json.RawMessage(body), nil
}

// Progress reports the provider-side status of a job.
func (c *Client) Progress(ctx context.Context, jobID string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/datasets/v3/progress/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode progress: %w", err)
	}
	return out.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brightdata %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read brightdata response: %w", err)
	}
	if resp.StatusCode == http.StatusAccepted {
		return nil, ErrSnapshotNotReady
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, fmt.Errorf("brightdata %s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, strings.TrimSpace(msg))
	}
	return data, nil
}
