package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Locations LocationsConfig `mapstructure:"locations"`
	Editor    EditorConfig    `mapstructure:"editor"`
	Estimates EstimatesConfig `mapstructure:"estimates"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
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

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// RoutingConfig configures the Mapbox-compatible routing service.
type RoutingConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	AccessToken     string `mapstructure:"access_token"`
	Profile         string `mapstructure:"profile"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	MaxWaypoints    int    `mapstructure:"max_waypoints"`
}

// LocationsConfig configures the location relay feed and sample intake.
type LocationsConfig struct {
	FeedURL     string `mapstructure:"feed_url"`
	PollSeconds int    `mapstructure:"poll_seconds"`
	MaxAgeSecs  int    `mapstructure:"max_age_seconds"`
}

// EditorConfig configures editing sessions.
type EditorConfig struct {
	HistoryLimit       int     `mapstructure:"history_limit"`
	AxisOrder          string  `mapstructure:"axis_order"`
	InsertPosition     string  `mapstructure:"insert_position"` // "tail" | "head"
	SimplifyTolerance  float64 `mapstructure:"simplify_tolerance"`
	SessionIdleMinutes int     `mapstructure:"session_idle_minutes"`
	RegionPadding      float64 `mapstructure:"region_padding"`
	RegionMinSpan      float64 `mapstructure:"region_min_span"`
}

// EstimatesConfig holds the constants of the fare and travel-time bands.
type EstimatesConfig struct {
	FareBase        float64 `mapstructure:"fare_base"`
	FareFreeKm      float64 `mapstructure:"fare_free_km"`
	FarePerKm       float64 `mapstructure:"fare_per_km"`
	FareBand        float64 `mapstructure:"fare_band"`
	AvgSpeedKmh     float64 `mapstructure:"avg_speed_kmh"`
	TimeBandMinutes float64 `mapstructure:"time_band_minutes"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "routekit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "routekit")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "conformance-queue")
	v.SetDefault("routing.base_url", "https://api.mapbox.com")
	v.SetDefault("routing.access_token", "")
	v.SetDefault("routing.profile", "driving")
	v.SetDefault("routing.timeout_seconds", 10)
	v.SetDefault("routing.cache_ttl_seconds", 3600)
	v.SetDefault("routing.max_waypoints", 12)
	v.SetDefault("locations.feed_url", "")
	v.SetDefault("locations.poll_seconds", 15)
	v.SetDefault("locations.max_age_seconds", 120)
	v.SetDefault("editor.history_limit", 100)
	v.SetDefault("editor.axis_order", "auto")
	v.SetDefault("editor.insert_position", "tail")
	v.SetDefault("editor.simplify_tolerance", 0.0001)
	v.SetDefault("editor.session_idle_minutes", 60)
	v.SetDefault("editor.region_padding", 0.1)
	v.SetDefault("editor.region_min_span", 0.005)
	v.SetDefault("estimates.fare_base", 13)
	v.SetDefault("estimates.fare_free_km", 4)
	v.SetDefault("estimates.fare_per_km", 1.8)
	v.SetDefault("estimates.fare_band", 3)
	v.SetDefault("estimates.avg_speed_kmh", 20)
	v.SetDefault("estimates.time_band_minutes", 15)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ROUTEKIT_ROUTING_ACCESS_TOKEN → routing.access_token
	v.SetEnvPrefix("ROUTEKIT")
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

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Routing.BaseURL == "" {
		errs = append(errs, "routing.base_url is required")
	}
	if c.Routing.TimeoutSeconds <= 0 {
		errs = append(errs, "routing.timeout_seconds must be positive")
	}
	if c.Routing.MaxWaypoints < 2 {
		errs = append(errs, fmt.Sprintf("routing.max_waypoints must be at least 2, got %d", c.Routing.MaxWaypoints))
	}
	if c.Locations.PollSeconds <= 0 {
		errs = append(errs, "locations.poll_seconds must be positive")
	}
	if c.Locations.MaxAgeSecs < 0 {
		errs = append(errs, "locations.max_age_seconds must not be negative")
	}
	switch c.Editor.AxisOrder {
	case "auto", "lonlat", "latlon":
	default:
		errs = append(errs, fmt.Sprintf("editor.axis_order must be auto, lonlat or latlon, got %q", c.Editor.AxisOrder))
	}
	switch c.Editor.InsertPosition {
	case "tail", "head":
	default:
		errs = append(errs, fmt.Sprintf("editor.insert_position must be tail or head, got %q", c.Editor.InsertPosition))
	}
	if c.Editor.SimplifyTolerance < 0 {
		errs = append(errs, "editor.simplify_tolerance must not be negative")
	}
	if c.Editor.RegionPadding < 0 {
		errs = append(errs, "editor.region_padding must not be negative")
	}
	if c.Editor.RegionMinSpan <= 0 {
		errs = append(errs, "editor.region_min_span must be positive")
	}
	if c.Estimates.AvgSpeedKmh <= 0 {
		errs = append(errs, "estimates.avg_speed_kmh must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
