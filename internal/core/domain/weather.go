package domain

import "time"

// Weather is the current conditions at the serviced area, shown next to
// the map. A single reading covers the whole bounding box.
type Weather struct {
	TemperatureC float64   `json:"temperature_c"`
	WindSpeedMS  float64   `json:"wind_speed_ms"`
	Condition    string    `json:"condition,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}
