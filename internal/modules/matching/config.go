package matching

import (
	"embed"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lostradar/lostradar-backend/internal/platform/envutil"
)

const configPathEnv = "MATCHING_CONFIG_YAML"

//go:embed matching_defaults.yaml
var defaultsFS embed.FS

// Config is the full tuning surface of the matching engine. It is resolved
// once at startup and passed to scorers by value; nothing in this package
// reads process-global state.
type Config struct {
	// Base signal weights; must sum to 1.0. Weights of unavailable signals
	// are redistributed across the available ones at composite time.
	TextWeight  float64
	ImageWeight float64
	GeoWeight   float64
	TimeWeight  float64

	// Minimum composite score for a candidate to become a match.
	MinMatchScore float64

	// Signal thresholds. Candidate retrieval applies a relaxed 0.85x text
	// cutoff; the image scorer rejects below 0.9x of its threshold.
	TextThreshold  float64
	ImageThreshold float64

	// Geo scoring search radius in kilometers; beyond it the geo signal is
	// absent, not zero.
	GeoRadiusKM float64

	// Exponential time decay window in days.
	TimeWindowDays float64

	// ANN candidate pool size K. The retriever asks the index for K*2
	// neighbors before the exact re-score.
	ANNTopK int

	// Default result cap per pipeline run.
	MaxResults int

	// Vector index query timeout; a timeout yields zero candidates.
	RetrievalTimeout time.Duration

	// Per-candidate scoring fan-out limit.
	ScoreConcurrency int
}

type yamlConfig struct {
	Weights struct {
		Text  float64 `yaml:"text"`
		Image float64 `yaml:"image"`
		Geo   float64 `yaml:"geo"`
		Time  float64 `yaml:"time"`
	} `yaml:"weights"`
	MinMatchScore      float64 `yaml:"min_match_score"`
	TextThreshold      float64 `yaml:"text_threshold"`
	ImageThreshold     float64 `yaml:"image_threshold"`
	GeoRadiusKM        float64 `yaml:"geo_radius_km"`
	TimeWindowDays     float64 `yaml:"time_window_days"`
	ANNTopK            int     `yaml:"ann_top_k"`
	MaxResults         int     `yaml:"max_results"`
	RetrievalTimeoutMS int     `yaml:"retrieval_timeout_ms"`
	ScoreConcurrency   int     `yaml:"score_concurrency"`
}

type ConfigErrorCode string

const (
	ConfigErrorUnreadableFile ConfigErrorCode = "unreadable_file"
	ConfigErrorBadYAML        ConfigErrorCode = "bad_yaml"
	ConfigErrorBadWeights     ConfigErrorCode = "bad_weights"
	ConfigErrorBadThreshold   ConfigErrorCode = "bad_threshold"
	ConfigErrorBadRange       ConfigErrorCode = "bad_range"
)

type ConfigError struct {
	Code    ConfigErrorCode
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid matching config"
	}
	if e.Message != "" {
		return fmt.Sprintf("invalid matching config (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("invalid matching config (%s)", e.Code)
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// LoadConfig resolves the engine config: embedded defaults, then the
// optional YAML file named by MATCHING_CONFIG_YAML, then MATCHING_*
// environment overrides. The result is validated.
func LoadConfig() (Config, error) {
	raw, err := defaultsFS.ReadFile("matching_defaults.yaml")
	if err != nil {
		return Config{}, &ConfigError{Code: ConfigErrorUnreadableFile, Message: "embedded defaults missing", Cause: err}
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return Config{}, &ConfigError{Code: ConfigErrorBadYAML, Message: "embedded defaults", Cause: err}
	}

	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		fileRaw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &ConfigError{Code: ConfigErrorUnreadableFile, Message: path, Cause: err}
		}
		if err := yaml.Unmarshal(fileRaw, &yc); err != nil {
			return Config{}, &ConfigError{Code: ConfigErrorBadYAML, Message: path, Cause: err}
		}
	}

	cfg := Config{
		TextWeight:       envutil.Float("MATCHING_TEXT_WEIGHT", yc.Weights.Text),
		ImageWeight:      envutil.Float("MATCHING_IMAGE_WEIGHT", yc.Weights.Image),
		GeoWeight:        envutil.Float("MATCHING_GEO_WEIGHT", yc.Weights.Geo),
		TimeWeight:       envutil.Float("MATCHING_TIME_WEIGHT", yc.Weights.Time),
		MinMatchScore:    envutil.Float("MATCHING_MIN_MATCH_SCORE", yc.MinMatchScore),
		TextThreshold:    envutil.Float("MATCHING_TEXT_THRESHOLD", yc.TextThreshold),
		ImageThreshold:   envutil.Float("MATCHING_IMAGE_THRESHOLD", yc.ImageThreshold),
		GeoRadiusKM:      envutil.Float("MATCHING_GEO_RADIUS_KM", yc.GeoRadiusKM),
		TimeWindowDays:   envutil.Float("MATCHING_TIME_WINDOW_DAYS", yc.TimeWindowDays),
		ANNTopK:          envutil.Int("MATCHING_ANN_TOP_K", yc.ANNTopK),
		MaxResults:       envutil.Int("MATCHING_MAX_RESULTS", yc.MaxResults),
		RetrievalTimeout: envutil.DurationMS("MATCHING_RETRIEVAL_TIMEOUT_MS", time.Duration(yc.RetrievalTimeoutMS)*time.Millisecond),
		ScoreConcurrency: envutil.Int("MATCHING_SCORE_CONCURRENCY", yc.ScoreConcurrency),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the scorers rely on.
func (c Config) Validate() error {
	sum := c.TextWeight + c.ImageWeight + c.GeoWeight + c.TimeWeight
	if c.TextWeight < 0 || c.ImageWeight < 0 || c.GeoWeight < 0 || c.TimeWeight < 0 {
		return &ConfigError{Code: ConfigErrorBadWeights, Message: "signal weights must be non-negative"}
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return &ConfigError{
			Code:    ConfigErrorBadWeights,
			Message: fmt.Sprintf("signal weights must sum to 1.0, got %.6f", sum),
		}
	}
	for name, v := range map[string]float64{
		"min_match_score": c.MinMatchScore,
		"text_threshold":  c.TextThreshold,
		"image_threshold": c.ImageThreshold,
	} {
		if v < 0 || v > 1 {
			return &ConfigError{
				Code:    ConfigErrorBadThreshold,
				Message: fmt.Sprintf("%s must be within [0,1], got %v", name, v),
			}
		}
	}
	if c.GeoRadiusKM <= 0 {
		return &ConfigError{Code: ConfigErrorBadRange, Message: "geo_radius_km must be positive"}
	}
	if c.TimeWindowDays <= 0 {
		return &ConfigError{Code: ConfigErrorBadRange, Message: "time_window_days must be positive"}
	}
	if c.ANNTopK <= 0 {
		return &ConfigError{Code: ConfigErrorBadRange, Message: "ann_top_k must be positive"}
	}
	if c.MaxResults <= 0 {
		return &ConfigError{Code: ConfigErrorBadRange, Message: "max_results must be positive"}
	}
	if c.RetrievalTimeout <= 0 {
		return &ConfigError{Code: ConfigErrorBadRange, Message: "retrieval_timeout_ms must be positive"}
	}
	if c.ScoreConcurrency <= 0 {
		return &ConfigError{Code: ConfigErrorBadRange, Message: "score_concurrency must be positive"}
	}
	return nil
}

// RelaxedTextThreshold is the recall-preserving retrieval cutoff; the real
// text threshold is enforced indirectly by the composite minimum.
func (c Config) RelaxedTextThreshold() float64 {
	return 0.85 * c.TextThreshold
}

// ImageRejectBelow is the gate under which a weak image similarity is
// reported as absent instead of a low score.
func (c Config) ImageRejectBelow() float64 {
	return 0.9 * c.ImageThreshold
}
