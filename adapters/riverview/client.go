package riverview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/errors"
)

// ClientConfig holds the River View connection settings
type ClientConfig struct {
	BaseURL string
	Limit   int // sent as ?limit= when not aggregating; 0 omits it
	Timeout time.Duration
}

// Client fetches stream data from a River View instance
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *internal.Logger
}

// NewClient creates a new River View client
func NewClient(config ClientConfig, logger *internal.Logger) *Client {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// DataURL builds <base>/<river>/<stream>/data.json with the query this client sends
func (c *Client) DataURL(river, streamID, aggregate string) string {
	target := fmt.Sprintf("%s/%s/%s/data.json",
		strings.TrimRight(c.config.BaseURL, "/"),
		url.PathEscape(river),
		url.PathEscape(streamID))

	params := url.Values{}
	if aggregate != "" {
		params.Set("aggregate", aggregate)
	} else if c.config.Limit > 0 {
		params.Set("limit", strconv.Itoa(c.config.Limit))
	}
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return target
}

// FetchData retrieves one stream. Non-scalar rivers are rejected unless aggregated.
func (c *Client) FetchData(ctx context.Context, river, streamID, aggregate string) (*stream.Data, error) {
	target := c.DataURL(river, streamID, aggregate)
	c.logger.Info("Fetching data from %s...", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ExternalServiceError("River View", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	c.logger.Debug("River View responded %d in %s (%d bytes)", resp.StatusCode, time.Since(start), len(body))

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound(fmt.Sprintf("The River or stream provided does not exist:\n%s", target))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.ExternalServiceError("River View",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	data, err := parseData(body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse response from %s", target)
	}
	data.URL = target

	if data.Type != stream.TypeScalar && aggregate == "" {
		return nil, errors.InvalidInput(fmt.Sprintf(
			"Cannot process Rivers unless they are scalar.\n%s does not return scalar data.", target))
	}

	c.logger.Debug("Fetched %d rows with headers %v", len(data.Rows), data.Headers)
	return data, nil
}

// parseData decodes {name, type, headers, data} without forcing a row schema
func parseData(body []byte) (*stream.Data, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.InvalidInput("response is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errors.InvalidInput("response is not a JSON object")
	}

	headers := root.Get("headers")
	if !headers.IsArray() {
		return nil, errors.InvalidInput("response has no headers array")
	}

	data := &stream.Data{
		Name: root.Get("name").String(),
		Type: root.Get("type").String(),
	}
	for _, h := range headers.Array() {
		data.Headers = append(data.Headers, h.String())
	}

	rows := root.Get("data")
	if rows.Exists() && !rows.IsArray() {
		return nil, errors.InvalidInput("response data is not an array")
	}
	for i, row := range rows.Array() {
		if !row.IsArray() {
			return nil, errors.InvalidInput(fmt.Sprintf("data row %d is not an array", i))
		}
		cells := row.Array()
		values := make([]interface{}, len(cells))
		for j, cell := range cells {
			values[j] = cell.Value()
		}
		data.Rows = append(data.Rows, values)
	}

	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
