package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Vasttrafik VasttrafikConfig `mapstructure:"vasttrafik"`
	Weather    WeatherConfig    `mapstructure:"weather"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Shapes     ShapesConfig     `mapstructure:"shapes"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// VasttrafikConfig covers the upstream Planera Resa v4 API: credentials,
// endpoints, and the fetch geometry.
type VasttrafikConfig struct {
	ClientID     string  `mapstructure:"client_id"`
	ClientSecret string  `mapstructure:"client_secret"`
	TokenURL     string  `mapstructure:"token_url"`
	PositionsURL string  `mapstructure:"positions_url"`
	PollInterval int     `mapstructure:"poll_interval"` // seconds
	GridSize     int     `mapstructure:"grid_size"`
	FetchLimit   int     `mapstructure:"fetch_limit"` // per-cell result cap
	Workers      int     `mapstructure:"workers"`     // concurrent cell fetches
	LowerLat     float64 `mapstructure:"lower_lat"`
	LowerLon     float64 `mapstructure:"lower_lon"`
	UpperLat     float64 `mapstructure:"upper_lat"`
	UpperLon     float64 `mapstructure:"upper_lon"`
}

type WeatherConfig struct {
	URL        string  `mapstructure:"url"`
	Latitude   float64 `mapstructure:"latitude"`
	Longitude  float64 `mapstructure:"longitude"`
	TTLSeconds int     `mapstructure:"ttl_seconds"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type ShapesConfig struct {
	File string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("vasttrafik.token_url", "https://ext-api.vasttrafik.se/token")
	v.SetDefault("vasttrafik.positions_url", "https://ext-api.vasttrafik.se/pr/v4/positions")
	v.SetDefault("vasttrafik.poll_interval", 2)
	v.SetDefault("vasttrafik.grid_size", 4)
	v.SetDefault("vasttrafik.fetch_limit", 200)
	v.SetDefault("vasttrafik.workers", 4)
	// Gothenburg area, widened to include the ferries
	v.SetDefault("vasttrafik.lower_lat", 57.55)
	v.SetDefault("vasttrafik.lower_lon", 11.70)
	v.SetDefault("vasttrafik.upper_lat", 57.90)
	v.SetDefault("vasttrafik.upper_lon", 12.25)
	v.SetDefault("weather.url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.latitude", 57.7089)
	v.SetDefault("weather.longitude", 11.9746)
	v.SetDefault("weather.ttl_seconds", 600)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("shapes.file", "tram_routes.json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: VASTMAP_VASTTRAFIK_CLIENT_ID → vasttrafik.client_id
	v.SetEnvPrefix("VASTMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Bounds returns the serviced bounding box.
func (c VasttrafikConfig) Bounds() (minLat, minLon, maxLat, maxLon float64) {
	return c.LowerLat, c.LowerLon, c.UpperLat, c.UpperLon
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Vasttrafik.ClientID == "" {
		errs = append(errs, "vasttrafik.client_id is required (set VASTMAP_VASTTRAFIK_CLIENT_ID)")
	}
	if c.Vasttrafik.ClientSecret == "" {
		errs = append(errs, "vasttrafik.client_secret is required (set VASTMAP_VASTTRAFIK_CLIENT_SECRET)")
	}
	if c.Vasttrafik.TokenURL == "" {
		errs = append(errs, "vasttrafik.token_url is required")
	}
	if c.Vasttrafik.PositionsURL == "" {
		errs = append(errs, "vasttrafik.positions_url is required")
	}
	if c.Vasttrafik.PollInterval <= 0 {
		errs = append(errs, "vasttrafik.poll_interval must be positive")
	}
	if c.Vasttrafik.GridSize < 1 {
		errs = append(errs, fmt.Sprintf("vasttrafik.grid_size must be >= 1, got %d", c.Vasttrafik.GridSize))
	}
	if c.Vasttrafik.FetchLimit <= 0 {
		errs = append(errs, "vasttrafik.fetch_limit must be positive")
	}
	if c.Vasttrafik.Workers < 1 {
		errs = append(errs, fmt.Sprintf("vasttrafik.workers must be >= 1, got %d", c.Vasttrafik.Workers))
	}
	if c.Vasttrafik.LowerLat >= c.Vasttrafik.UpperLat {
		errs = append(errs, "vasttrafik bounding box: lower_lat must be south of upper_lat")
	}
	if c.Vasttrafik.LowerLon >= c.Vasttrafik.UpperLon {
		errs = append(errs, "vasttrafik bounding box: lower_lon must be west of upper_lon")
	}
	if c.Weather.TTLSeconds <= 0 {
		errs = append(errs, "weather.ttl_seconds must be positive")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
