package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed tolerances.yaml
var tolerancesYAML []byte

type Config struct {
	Detector   DetectorConfig
	Model      ModelConfig
	Gallery    GalleryConfig
	Database   DatabaseConfig
	Tolerances TolerancesConfig
}

type DetectorConfig struct {
	URL string // face detection/embedding server, defaults to http://localhost:8000
	Dim int    // embedding dimensionality, defaults to 128
}

type ModelConfig struct {
	DataFile    string // path of the persisted identity collection blob
	MaxEncoding int    // encodings kept per identity (FIFO), default 12
}

type GalleryConfig struct {
	UploadDir      string // root of per-event upload directories
	ProcessedDir   string // root of per-event, per-person processed layout
	ProcessOnStart bool   // ingest pending event directories at startup
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL (optional, empty disables the backend)
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the face HNSW index (optional)
}

// TolerancesConfig pins the matching distance thresholds in one place.
// Two historical variants exist; default_variant selects which one the
// identity store uses.
type TolerancesConfig struct {
	Variants       map[string]Tolerance `yaml:"variants"`
	DefaultVariant string               `yaml:"default_variant"`
}

type Tolerance struct {
	Strict  float64 `yaml:"strict"`
	Relaxed float64 `yaml:"relaxed"`
}

// Active returns the tolerance pair for the configured default variant.
func (t *TolerancesConfig) Active() Tolerance {
	if tol, ok := t.Variants[t.DefaultVariant]; ok {
		return tol
	}
	// Embedded file guarantees the centroid variant exists.
	return t.Variants["centroid"]
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

// envBool reads an environment variable as a boolean flag.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envStr reads an environment variable, falling back to a default.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var tolerances TolerancesConfig
	if err := yaml.Unmarshal(tolerancesYAML, &tolerances); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded tolerances.yaml: " + err.Error())
	}
	if v := os.Getenv("MATCH_TOLERANCE_VARIANT"); v != "" {
		tolerances.DefaultVariant = v
	}

	return &Config{
		Detector: DetectorConfig{
			URL: os.Getenv("DETECTOR_URL"),
			Dim: envInt("DETECTOR_DIM", 128),
		},
		Model: ModelConfig{
			DataFile:    envStr("MODEL_DATA_FILE", "known_faces.dat"),
			MaxEncoding: envInt("MODEL_MAX_ENCODINGS", 12),
		},
		Gallery: GalleryConfig{
			UploadDir:      envStr("UPLOAD_DIR", "uploads"),
			ProcessedDir:   envStr("PROCESSED_DIR", "processed"),
			ProcessOnStart: envBool("PROCESS_ON_STARTUP", false),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Tolerances: tolerances,
	}
}
