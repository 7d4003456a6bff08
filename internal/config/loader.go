package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// webrtcSampleRates lists the capture rates the webrtc VAD engine accepts.
var webrtcSampleRates = []int{8000, 16000, 32000, 48000}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals. Unknown YAML keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found. Soft issues (e.g.,
// recognition disabled) are logged, not returned.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Capture
	if cfg.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", cfg.Capture.SampleRate))
	}
	if cfg.Capture.WindowMs < 10 || cfg.Capture.WindowMs > 1000 {
		errs = append(errs, fmt.Errorf("capture.window_ms %d is out of range [10, 1000]", cfg.Capture.WindowMs))
	}
	if !cfg.Capture.VAD.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("capture.vad.engine %q is invalid; valid values: rms, webrtc", cfg.Capture.VAD.Engine))
	}
	if cfg.Capture.VAD.NoiseFloor < 0 {
		errs = append(errs, fmt.Errorf("capture.vad.noise_floor %.1f must not be negative", cfg.Capture.VAD.NoiseFloor))
	}
	if cfg.Capture.VAD.Aggressiveness < 0 || cfg.Capture.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("capture.vad.aggressiveness %d is out of range [0, 3]", cfg.Capture.VAD.Aggressiveness))
	}
	if cfg.Capture.VAD.Engine == VADWebRTC && !slices.Contains(webrtcSampleRates, cfg.Capture.SampleRate) {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d is unsupported by the webrtc VAD engine; valid rates: %v",
			cfg.Capture.SampleRate, webrtcSampleRates))
	}

	// Recognizer
	switch {
	case !cfg.Recognizer.Engine.IsValid():
		errs = append(errs, fmt.Errorf("recognizer.engine %q is invalid; valid values: gateway, none", cfg.Recognizer.Engine))
	case cfg.Recognizer.Engine == RecognizerGateway && cfg.Recognizer.GatewayURL == "":
		errs = append(errs, errors.New("recognizer.gateway_url is required when recognizer.engine is gateway"))
	case cfg.Recognizer.Engine == RecognizerNone:
		slog.Warn("recognition is disabled; sessions will analyze audio only")
	}
	if cfg.Recognizer.Restart.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("recognizer.restart.max_attempts %d must not be negative", cfg.Recognizer.Restart.MaxAttempts))
	}
	if cfg.Recognizer.Restart.BackoffMs < 0 || cfg.Recognizer.Restart.BackoffMaxMs < 0 {
		errs = append(errs, errors.New("recognizer.restart backoff values must not be negative"))
	}
	if cfg.Recognizer.Restart.BackoffMaxMs > 0 && cfg.Recognizer.Restart.BackoffMs > cfg.Recognizer.Restart.BackoffMaxMs {
		errs = append(errs, fmt.Errorf("recognizer.restart.backoff_ms %d exceeds backoff_max_ms %d",
			cfg.Recognizer.Restart.BackoffMs, cfg.Recognizer.Restart.BackoffMaxMs))
	}

	// Analysis
	if cfg.Analysis.NeutralConfidence < 0 || cfg.Analysis.NeutralConfidence > 100 {
		errs = append(errs, fmt.Errorf("analysis.neutral_confidence %.1f is out of range [0, 100]", cfg.Analysis.NeutralConfidence))
	}
	for i, w := range cfg.Analysis.FillerWords {
		if w == "" {
			errs = append(errs, fmt.Errorf("analysis.filler_words[%d] is empty", i))
		}
	}

	// Grading
	if cfg.Grading.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("grading.timeout_ms %d must not be negative", cfg.Grading.TimeoutMs))
	}

	return errors.Join(errs...)
}
