package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	API      APIConfig
	Camera   CameraConfig
	Capture  CaptureConfig
	Timeouts TimeoutsConfig
	Database DatabaseConfig
	Web      WebConfig
}

type APIConfig struct {
	URL      string // base URL of the attendance service, without /api/v1
	Token    string // optional bearer token
	Timezone string // zone for session start times sent without an offset ("" = local)
}

type CameraConfig struct {
	SnapshotURL string // HTTP endpoint returning a single JPEG frame (IP camera / webcam bridge)
	ImageDir    string // directory of frames, used instead of SnapshotURL when set
	MaxSize     int    // frames are downscaled to fit this dimension before upload
}

type CaptureConfig struct {
	Mode            string        // "manual" or "continuous"
	Recorder        string        // "api", "postgres" or "both" (api, mirrored into the ledger)
	PollInterval    time.Duration // session list refresh
	CaptureInterval time.Duration // periodic capture cadence in continuous mode
	RecordOnStop    bool          // continuous mode: submit the present set when capture stops
	RecordEachMatch bool          // continuous mode: record each student on first sighting
}

// TimeoutsConfig bounds each remote call. Recognition and exports get
// longer budgets than simple reads.
type TimeoutsConfig struct {
	Read      time.Duration
	Write     time.Duration
	Recognize time.Duration
	Export    time.Duration
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for the attendance ledger
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type WebConfig struct {
	Host           string
	Port           int
	Token          string // when set, control endpoints require this bearer token
	AllowedOrigins string // comma-separated CORS origins besides localhost
}

type defaults struct {
	Intervals struct {
		SessionPoll time.Duration `yaml:"session_poll"`
		Capture     time.Duration `yaml:"capture"`
	} `yaml:"intervals"`
	Timeouts struct {
		Read      time.Duration `yaml:"read"`
		Write     time.Duration `yaml:"write"`
		Recognize time.Duration `yaml:"recognize"`
		Export    time.Duration `yaml:"export"`
	} `yaml:"timeouts"`
	Camera struct {
		MaxSize int `yaml:"max_size"`
	} `yaml:"camera"`
	Capture struct {
		Mode     string `yaml:"mode"`
		Recorder string `yaml:"recorder"`
	} `yaml:"capture"`
	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads a Go duration ("15s", "1500ms") from the environment.
// Non-positive or malformed values fall back to the default.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

// Location returns the zone for naive session start times.
func (c APIConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from the environment on top of the embedded defaults.
func Load() *Config {
	d := loadDefaults()

	return &Config{
		API: APIConfig{
			URL:      strings.TrimRight(envString("ATTENDANCE_API_URL", "http://127.0.0.1:8000"), "/"),
			Token:    os.Getenv("ATTENDANCE_API_TOKEN"),
			Timezone: os.Getenv("ATTENDANCE_TIMEZONE"),
		},
		Camera: CameraConfig{
			SnapshotURL: os.Getenv("CAMERA_SNAPSHOT_URL"),
			ImageDir:    os.Getenv("CAMERA_IMAGE_DIR"),
			MaxSize:     envInt("CAMERA_MAX_SIZE", d.Camera.MaxSize),
		},
		Capture: CaptureConfig{
			Mode:            envString("CAPTURE_MODE", d.Capture.Mode),
			Recorder:        envString("ATTENDANCE_RECORDER", d.Capture.Recorder),
			PollInterval:    envDuration("SESSION_POLL_INTERVAL", d.Intervals.SessionPoll),
			CaptureInterval: envDuration("CAPTURE_INTERVAL", d.Intervals.Capture),
			RecordOnStop:    envBool("CAPTURE_RECORD_ON_STOP"),
			RecordEachMatch: envBool("CAPTURE_RECORD_EACH_MATCH"),
		},
		Timeouts: TimeoutsConfig{
			Read:      envDuration("API_READ_TIMEOUT", d.Timeouts.Read),
			Write:     envDuration("API_WRITE_TIMEOUT", d.Timeouts.Write),
			Recognize: envDuration("API_RECOGNIZE_TIMEOUT", d.Timeouts.Recognize),
			Export:    envDuration("API_EXPORT_TIMEOUT", d.Timeouts.Export),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("LEDGER_DATABASE_URL"),
			MaxOpenConns: envInt("LEDGER_DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("LEDGER_DATABASE_MAX_IDLE_CONNS", 2),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			Token:          os.Getenv("WEB_TOKEN"),
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
	}
}
