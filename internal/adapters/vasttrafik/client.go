package vasttrafik

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/samirrijal/vastmap/internal/core/domain"
	"github.com/samirrijal/vastmap/internal/core/ports"
	"github.com/samirrijal/vastmap/internal/pkg/metrics"
)

const (
	// fetchAttempts bounds retries per cell. The poll cycle is short, so
	// failing fast and letting the next cycle retry beats long waits.
	fetchAttempts = 3

	// retryBackoff is multiplied by the attempt number: linear, not
	// exponential, for the same reason.
	retryBackoff = 300 * time.Millisecond
)

// Client implements ports.PositionSource against the Västtrafik
// Planera Resa v4 positions endpoint.
type Client struct {
	httpClient   *http.Client
	positionsURL string
	limit        int
	tokens       ports.TokenSource
}

// NewClient creates a positions client with a 10s request timeout.
// limit is the per-cell result cap passed to the upstream API.
func NewClient(positionsURL string, limit int, tokens ports.TokenSource) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		positionsURL: positionsURL,
		limit:        limit,
		tokens:       tokens,
	}
}

// FetchCell queries one grid cell. It never returns an error: after
// exhausting retries the cell contributes zero records and the refresh
// cycle carries on. Each attempt re-fetches the token, since a failure
// on another cell may have refreshed it concurrently.
func (c *Client) FetchCell(ctx context.Context, cell domain.GridCell) []domain.RawVehicle {
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		records, err := c.fetchOnce(ctx, cell)
		if err == nil {
			return records
		}

		if attempt < fetchAttempts {
			metrics.CellFetchRetries.Inc()
			select {
			case <-time.After(time.Duration(attempt) * retryBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		metrics.CellFetchErrors.Inc()
		slog.Warn("cell fetch exhausted retries",
			"row", cell.Row, "col", cell.Col, "error", err)
	}
	return nil
}

func (c *Client) fetchOnce(ctx context.Context, cell domain.GridCell) ([]domain.RawVehicle, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	q := url.Values{}
	q.Set("lowerLeftLat", fmt.Sprintf("%.6f", cell.Bounds.MinLat))
	q.Set("lowerLeftLong", fmt.Sprintf("%.6f", cell.Bounds.MinLon))
	q.Set("upperRightLat", fmt.Sprintf("%.6f", cell.Bounds.MaxLat))
	q.Set("upperRightLong", fmt.Sprintf("%.6f", cell.Bounds.MaxLon))
	q.Set("limit", fmt.Sprintf("%d", c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.positionsURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET positions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("positions endpoint returned HTTP %d", resp.StatusCode)
	}

	var records []domain.RawVehicle
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return records, nil
}
