package domain

import "time"

// VehicleType classifies a vehicle on the map.
type VehicleType string

const (
	VehicleTram  VehicleType = "tram"
	VehicleBus   VehicleType = "bus"
	VehicleTrain VehicleType = "train"
	VehicleBoat  VehicleType = "boat"
)

// transportModes maps the upstream transportMode field to a VehicleType.
// Trams outside the core network report "unknown", so that maps to tram.
var transportModes = map[string]VehicleType{
	"tram":    VehicleTram,
	"bus":     VehicleBus,
	"train":   VehicleTrain,
	"ferry":   VehicleBoat,
	"ship":    VehicleBoat,
	"taxi":    VehicleBus,
	"unknown": VehicleTram,
	"none":    VehicleBus,
}

// TypeForMode resolves an upstream transport mode, defaulting to bus.
func TypeForMode(mode string) VehicleType {
	if t, ok := transportModes[mode]; ok {
		return t
	}
	return VehicleBus
}

// FallbackColor returns the background color used when the upstream
// record carries none.
func FallbackColor(t VehicleType) string {
	switch t {
	case VehicleTram:
		return "#0074BF"
	case VehicleTrain:
		return "#A855F7"
	case VehicleBoat:
		return "#00E5FF"
	default:
		return "#E4002B"
	}
}

// DefaultForegroundColor is the text color used when the upstream omits one.
const DefaultForegroundColor = "#ffffff"

// RawVehicle is the upstream-shaped position record. It is transient:
// records are normalized into Vehicle and then discarded.
type RawVehicle struct {
	DetailsReference string              `json:"detailsReference"`
	Latitude         *float64            `json:"latitude"`
	Longitude        *float64            `json:"longitude"`
	Direction        string              `json:"direction"`
	DirectionDetails RawDirectionDetails `json:"directionDetails"`
	Line             RawLine             `json:"line"`
}

// RawLine is the nested line metadata on a raw position record.
type RawLine struct {
	Name              string `json:"name"`
	TransportMode     string `json:"transportMode"`
	BackgroundColor   string `json:"backgroundColor"`
	ForegroundColor   string `json:"foregroundColor"`
	IsRealtimeJourney bool   `json:"isRealtimeJourney"`
}

// RawDirectionDetails carries the short destination label.
type RawDirectionDetails struct {
	ShortDirection string `json:"shortDirection"`
}

// Vehicle is the public schema served to clients.
type Vehicle struct {
	ID          string      `json:"id"`
	Lat         float64     `json:"lat"`
	Lon         float64     `json:"lon"`
	Line        string      `json:"line"`
	Type        VehicleType `json:"type"`
	Color       string      `json:"color"`
	FgColor     string      `json:"fgColor"`
	Destination string      `json:"destination"`
	// The positions endpoint does not report speed or bearing; both
	// stay 0 until the upstream starts providing them.
	SpeedKmh   float64 `json:"speed_kmh"`
	Bearing    float64 `json:"bearing"`
	IsRealtime bool    `json:"isRealtime"`
}

// Snapshot is the complete, internally consistent set of vehicle positions
// produced by one refresh cycle. It is replaced wholesale, never mutated.
type Snapshot struct {
	Vehicles  []Vehicle `json:"vehicles"`
	FetchedAt time.Time `json:"fetched_at"`
	Count     int       `json:"count"`
}

// EmptySnapshot is what readers get before the first successful refresh.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Vehicles: []Vehicle{}}
}

// RouteShape is a static route geometry produced offline from GTFS data
// and loaded read-only at startup.
type RouteShape struct {
	Line      string      `json:"line"`
	Direction string      `json:"direction"`
	Color     string      `json:"color"`
	Coords    [][]float64 `json:"coords"` // [lat, lon] pairs
}
