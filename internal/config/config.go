package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type RemoteConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Token          string `json:"token" yaml:"token"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=1,lte=300"`
}

type SyncConfig struct {
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds" validate:"gte=0"`
	MaxAttempts     int `json:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
}

type ConnectivityConfig struct {
	ProbeSeconds int `json:"probe_seconds" yaml:"probe_seconds" validate:"gte=0"`
}

type GeofenceConfig struct {
	RadiusMeters    float64 `json:"radius_meters" yaml:"radius_meters" validate:"gt=0"`
	CooldownSeconds int     `json:"cooldown_seconds" yaml:"cooldown_seconds" validate:"gte=0"`
	RefreshSeconds  int     `json:"refresh_seconds" yaml:"refresh_seconds" validate:"gte=1"`
}

type RouteConfig struct {
	MinStepMeters float64 `json:"min_step_meters" yaml:"min_step_meters" validate:"gt=0"`
}

type PositionConfig struct {
	FreshnessSeconds int `json:"freshness_seconds" yaml:"freshness_seconds" validate:"gte=1"`
	TimeoutSeconds   int `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=1"`
}

type PhotoConfig struct {
	MaxEdgePx int `json:"max_edge_px" yaml:"max_edge_px" validate:"gte=64"`
}

// PlannerConfig points the destination lookup at a Nominatim-compatible
// geocoder and an OSRM-compatible router.
type PlannerConfig struct {
	GeocoderURL    string `json:"geocoder_url" yaml:"geocoder_url" validate:"omitempty,url"`
	RouterURL      string `json:"router_url" yaml:"router_url" validate:"omitempty,url"`
	CountryCodes   string `json:"country_codes" yaml:"country_codes"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=1,lte=120"`
}

type Config struct {
	Port         string             `json:"port" yaml:"port" validate:"required,numeric"`
	LogLevel     string             `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	QueuePath    string             `json:"queue_path" yaml:"queue_path" validate:"required"`
	DeviceID     string             `json:"device_id" yaml:"device_id" validate:"required"`
	Remote       RemoteConfig       `json:"remote" yaml:"remote"`
	Sync         SyncConfig         `json:"sync" yaml:"sync"`
	Connectivity ConnectivityConfig `json:"connectivity" yaml:"connectivity"`
	Geofence     GeofenceConfig     `json:"geofence" yaml:"geofence"`
	Route        RouteConfig        `json:"route" yaml:"route"`
	Position     PositionConfig     `json:"position" yaml:"position"`
	Photo        PhotoConfig        `json:"photo" yaml:"photo"`
	Planner      PlannerConfig      `json:"planner" yaml:"planner"`
}

// Load reads the config file (if any), applies FIELDTRACK_* overrides and
// defaults, and validates the result.
func Load() (Config, error) {
	cfg := Config{}
	paths := []string{os.Getenv("CONFIG_PATH"), "fieldtrack.yml", "fieldtrack.yaml", "fieldtrack.json"}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if err := decode(p, b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", p, err)
		}
		break
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(b, cfg)
	default:
		return yaml.Unmarshal(b, cfg)
	}
}

func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "5080"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if strings.TrimSpace(cfg.QueuePath) == "" {
		cfg.QueuePath = "file:fieldtrack-queue.db"
	}
	if strings.TrimSpace(cfg.DeviceID) == "" {
		if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
			cfg.DeviceID = "fieldtrack-" + host
		} else {
			cfg.DeviceID = "fieldtrack-" + uuid.NewString()[:8]
		}
	}
	cfg.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Remote.BaseURL), "/")
	if cfg.Remote.TimeoutSeconds <= 0 {
		cfg.Remote.TimeoutSeconds = 15
	}
	if cfg.Connectivity.ProbeSeconds == 0 {
		cfg.Connectivity.ProbeSeconds = 30
	}
	if cfg.Geofence.RadiusMeters <= 0 {
		cfg.Geofence.RadiusMeters = 200
	}
	if cfg.Geofence.CooldownSeconds <= 0 {
		cfg.Geofence.CooldownSeconds = 300
	}
	if cfg.Geofence.RefreshSeconds <= 0 {
		cfg.Geofence.RefreshSeconds = 300
	}
	if cfg.Route.MinStepMeters <= 0 {
		cfg.Route.MinStepMeters = 10
	}
	if cfg.Position.FreshnessSeconds <= 0 {
		cfg.Position.FreshnessSeconds = 10
	}
	if cfg.Position.TimeoutSeconds <= 0 {
		cfg.Position.TimeoutSeconds = 10
	}
	if cfg.Photo.MaxEdgePx <= 0 {
		cfg.Photo.MaxEdgePx = 1600
	}
	if strings.TrimSpace(cfg.Planner.GeocoderURL) == "" {
		cfg.Planner.GeocoderURL = "https://nominatim.openstreetmap.org"
	}
	if strings.TrimSpace(cfg.Planner.RouterURL) == "" {
		cfg.Planner.RouterURL = "https://router.project-osrm.org"
	}
	if strings.TrimSpace(cfg.Planner.CountryCodes) == "" {
		cfg.Planner.CountryCodes = "hr,ba,si,rs"
	}
	if cfg.Planner.TimeoutSeconds <= 0 {
		cfg.Planner.TimeoutSeconds = 10
	}
}

func applyEnv(cfg *Config) {
	if v := envString("FIELDTRACK_PORT", "PORT"); v != "" {
		cfg.Port = v
	}
	if v := envString("FIELDTRACK_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := envString("FIELDTRACK_QUEUE_PATH"); v != "" {
		cfg.QueuePath = v
	}
	if v := envString("FIELDTRACK_DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}
	if v := envString("FIELDTRACK_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := envString("FIELDTRACK_REMOTE_TOKEN"); v != "" {
		cfg.Remote.Token = v
	}
	if v := envString("FIELDTRACK_PLANNER_GEOCODER_URL"); v != "" {
		cfg.Planner.GeocoderURL = v
	}
	if v := envString("FIELDTRACK_PLANNER_ROUTER_URL"); v != "" {
		cfg.Planner.RouterURL = v
	}
	if v := envString("FIELDTRACK_PLANNER_COUNTRY_CODES"); v != "" {
		cfg.Planner.CountryCodes = v
	}
	envInt("FIELDTRACK_PLANNER_TIMEOUT_SECONDS", &cfg.Planner.TimeoutSeconds)
	envInt("FIELDTRACK_REMOTE_TIMEOUT_SECONDS", &cfg.Remote.TimeoutSeconds)
	envInt("FIELDTRACK_SYNC_INTERVAL_SECONDS", &cfg.Sync.IntervalSeconds)
	envInt("FIELDTRACK_SYNC_MAX_ATTEMPTS", &cfg.Sync.MaxAttempts)
	envInt("FIELDTRACK_CONNECTIVITY_PROBE_SECONDS", &cfg.Connectivity.ProbeSeconds)
	envInt("FIELDTRACK_GEOFENCE_COOLDOWN_SECONDS", &cfg.Geofence.CooldownSeconds)
	envInt("FIELDTRACK_GEOFENCE_REFRESH_SECONDS", &cfg.Geofence.RefreshSeconds)
	envInt("FIELDTRACK_POSITION_FRESHNESS_SECONDS", &cfg.Position.FreshnessSeconds)
	envInt("FIELDTRACK_POSITION_TIMEOUT_SECONDS", &cfg.Position.TimeoutSeconds)
	envInt("FIELDTRACK_PHOTO_MAX_EDGE_PX", &cfg.Photo.MaxEdgePx)
	envFloat("FIELDTRACK_GEOFENCE_RADIUS_METERS", &cfg.Geofence.RadiusMeters)
	envFloat("FIELDTRACK_ROUTE_MIN_STEP_METERS", &cfg.Route.MinStepMeters)
}

func envString(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func (c Config) RemoteConfigured() bool { return c.Remote.BaseURL != "" }

func (c Config) PlannerTimeout() time.Duration {
	return time.Duration(c.Planner.TimeoutSeconds) * time.Second
}

func (c Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.Connectivity.ProbeSeconds) * time.Second
}

func (c Config) GeofenceCooldown() time.Duration {
	return time.Duration(c.Geofence.CooldownSeconds) * time.Second
}

func (c Config) GeofenceRefresh() time.Duration {
	return time.Duration(c.Geofence.RefreshSeconds) * time.Second
}

func (c Config) Freshness() time.Duration {
	return time.Duration(c.Position.FreshnessSeconds) * time.Second
}

func (c Config) PositionTimeout() time.Duration {
	return time.Duration(c.Position.TimeoutSeconds) * time.Second
}
