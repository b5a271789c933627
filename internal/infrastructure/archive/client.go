// Package archive implements the HTTP client for the remote observation
// archive: the catalog query and the per-observation product listing.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ObservationScanner/internal/config"
	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/normalize"
	"ObservationScanner/internal/ports"
	"ObservationScanner/internal/retry"
)

const mjdUnixEpoch = 40587.0

// Client talks to the archive's JSON query API. Every request is wrapped
// in the shared retry policy; exhaustion surfaces as an error wrapping
// retry.ErrRemoteUnavailable.
type Client struct {
	baseURL      string
	collection   string
	productTypes []string
	calibLevels  []int
	client       *http.Client
	policy       retry.Policy
	logger       *slog.Logger
}

var _ ports.ArchiveSource = (*Client)(nil)

// NewClient wires an archive client from configuration. A nil HTTP
// client gets a default with the configured timeout.
func NewClient(cfg config.ArchiveConfig, policy retry.Policy, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		collection:   cfg.Collection,
		productTypes: cfg.ProductTypes,
		calibLevels:  cfg.CalibLevels,
		client:       httpClient,
		policy:       policy,
		logger:       logger,
	}
}

// QueryPartition fetches the catalog rows of one time window. The fixed
// criteria request only publicly released observation-level entries;
// product-level visibility is still checked downstream because a public
// listing can carry restricted files.
func (c *Client) QueryPartition(ctx context.Context, start, end time.Time) ([]domain.RawObservation, error) {
	params := url.Values{}
	params.Set("obs_collection", c.collection)
	params.Set("dataproduct_type", strings.Join(c.productTypes, ","))
	params.Set("calib_level", joinInts(c.calibLevels))
	params.Set("dataRights", "PUBLIC")
	params.Set("t_min", formatMJD(start))
	params.Set("t_max", formatMJD(end))

	rows, err := c.fetchRows(ctx, c.baseURL+"/observations?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("query partition %s: %w", start.Format("2006-01"), err)
	}

	observations := make([]domain.RawObservation, 0, len(rows))
	for _, row := range rows {
		raw, ok := normalize.ObservationFromRow(row)
		if !ok {
			c.debug("catalog row without identifier, dropped")
			continue
		}
		observations = append(observations, raw)
	}
	return observations, nil
}

// ListProducts fetches the candidate file descriptors of one observation.
func (c *Client) ListProducts(ctx context.Context, externalID string) ([]domain.RawProduct, error) {
	params := url.Values{}
	params.Set("obs_id", externalID)

	rows, err := c.fetchRows(ctx, c.baseURL+"/products?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("list products %s: %w", externalID, err)
	}

	products := make([]domain.RawProduct, 0, len(rows))
	for _, row := range rows {
		products = append(products, normalize.ProductFromRow(row))
	}
	return products, nil
}

// fetchRows issues one GET under the retry policy and decodes the JSON
// body. The archive answers either a bare array or {"data": [...]}.
func (c *Client) fetchRows(ctx context.Context, requestURL string) ([]map[string]any, error) {
	var rows []map[string]any

	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "ObservationScanner/1.0")
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request archive: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("archive returned %s", resp.Status)
		}

		decoded, err := decodeRows(resp.Body)
		if err != nil {
			return err
		}
		rows = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func decodeRows(body io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var items []any
	switch t := payload.(type) {
	case []any:
		items = t
	case map[string]any:
		wrapped, ok := t["data"].([]any)
		if !ok {
			return nil, fmt.Errorf("unexpected response shape")
		}
		items = wrapped
	default:
		return nil, fmt.Errorf("unexpected response shape")
	}

	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// formatMJD expresses a timestamp as a Modified Julian Date value, the
// unit the archive uses for time-window bounds.
func formatMJD(t time.Time) string {
	mjd := float64(t.UTC().Unix())/86400.0 + mjdUnixEpoch
	return strconv.FormatFloat(mjd, 'f', 5, 64)
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
