// Package openmeteo fetches current conditions from the Open-Meteo
// forecast API. No credentials are needed; the free tier is plenty for
// one reading every few minutes.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

// requestTimeout caps a single upstream call. Weather is a sidecar
// concern; a slow upstream must never hold up an API request for long.
const requestTimeout = 5 * time.Second

// Client implements ports.WeatherSource against the Open-Meteo API.
type Client struct {
	baseURL string
	point   domain.GeoPoint
	client  *http.Client
}

// NewClient creates a weather client for a fixed observation point.
func NewClient(baseURL string, point domain.GeoPoint) *Client {
	return &Client{
		baseURL: baseURL,
		point:   point,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type currentResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Fetch retrieves the current reading for the configured point.
func (c *Client) Fetch(ctx context.Context) (*domain.Weather, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create weather request: %w", err)
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", c.point.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", c.point.Lon))
	q.Set("current", "temperature_2m,wind_speed_10m,weather_code")
	q.Set("wind_speed_unit", "ms")
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch weather: unexpected status %d", resp.StatusCode)
	}

	var body currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	return &domain.Weather{
		TemperatureC: body.Current.Temperature,
		WindSpeedMS:  body.Current.WindSpeed,
		Condition:    conditionForCode(body.Current.WeatherCode),
	}, nil
}

// conditionForCode collapses WMO weather interpretation codes into the
// handful of buckets the map UI distinguishes.
func conditionForCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain"
	case code == 85 || code == 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
