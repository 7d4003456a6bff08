// Package config provides the configuration schema, loader, and file watcher
// for the elocute speech analysis service.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto the slog level scale. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// VADEngine selects the silence detection implementation.
type VADEngine string

const (
	// VADRMS gates on RMS energy against a fixed noise floor.
	VADRMS VADEngine = "rms"

	// VADWebRTC uses the WebRTC voice activity detection model.
	VADWebRTC VADEngine = "webrtc"
)

// IsValid reports whether e is a recognised VAD engine.
func (e VADEngine) IsValid() bool {
	return e == VADRMS || e == VADWebRTC
}

// RecognizerEngine selects the speech recognition backend.
type RecognizerEngine string

const (
	// RecognizerGateway streams audio to a recognition gateway over WebSocket.
	RecognizerGateway RecognizerEngine = "gateway"

	// RecognizerNone disables recognition; sessions analyze audio only.
	RecognizerNone RecognizerEngine = "none"
)

// IsValid reports whether e is a recognised recognizer engine.
func (e RecognizerEngine) IsValid() bool {
	return e == RecognizerGateway || e == RecognizerNone
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// ListenAddr is the TCP address of the health/metrics endpoint
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	Capture    CaptureConfig    `yaml:"capture"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Grading    GradingConfig    `yaml:"grading"`
	Input      InputConfig      `yaml:"input"`
}

// CaptureConfig selects the audio capture format.
type CaptureConfig struct {
	// SampleRate in Hz. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// WindowMs is the sampling cadence in milliseconds. Defaults to 100.
	WindowMs int `yaml:"window_ms"`

	// VAD configures silence detection.
	VAD VADConfig `yaml:"vad"`
}

// Window returns the sampling cadence as a duration.
func (c CaptureConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// VADConfig configures the silence detector.
type VADConfig struct {
	// Engine selects the implementation. Defaults to "rms".
	Engine VADEngine `yaml:"engine"`

	// NoiseFloor is the RMS energy below which a window counts as silent.
	// Used by the rms engine and as the fallback gate for webrtc. Defaults
	// to 500.
	NoiseFloor float64 `yaml:"noise_floor"`

	// Aggressiveness tunes the webrtc engine, 0 (permissive) to 3 (strict).
	Aggressiveness int `yaml:"aggressiveness"`
}

// RecognizerConfig configures the speech recognition backend.
type RecognizerConfig struct {
	// Engine selects the backend. Defaults to "gateway" when a gateway URL
	// is set, "none" otherwise.
	Engine RecognizerEngine `yaml:"engine"`

	// GatewayURL is the WebSocket endpoint of the recognition gateway
	// (e.g., "ws://localhost:9090/stt"). Required for the gateway engine.
	GatewayURL string `yaml:"gateway_url"`

	// Language is the BCP-47 recognition language tag. Defaults to "en-US".
	Language string `yaml:"language"`

	// Restart bounds automatic engine restarts.
	Restart RestartConfig `yaml:"restart"`
}

// RestartConfig bounds automatic recognition engine restarts.
type RestartConfig struct {
	// MaxAttempts is the number of consecutive restarts tolerated without an
	// intervening result. Defaults to 10.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffMs is the wait before the first restart in milliseconds,
	// doubling per attempt. Defaults to 200.
	BackoffMs int `yaml:"backoff_ms"`

	// BackoffMaxMs caps the doubling, in milliseconds. Defaults to 5000.
	BackoffMaxMs int `yaml:"backoff_max_ms"`
}

// Backoff returns the initial restart backoff as a duration.
func (c RestartConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// MaxBackoff returns the backoff cap as a duration.
func (c RestartConfig) MaxBackoff() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// AnalysisConfig tunes the word confidence tracker.
type AnalysisConfig struct {
	// NeutralConfidence is assigned to words without revision history,
	// 0–100. Defaults to 70.
	NeutralConfidence float64 `yaml:"neutral_confidence"`

	// FillerWords replaces the built-in filler vocabulary when non-empty.
	// Entries containing a space are matched as phrases.
	FillerWords []string `yaml:"filler_words"`
}

// GradingConfig configures result submission to an external grading service.
type GradingConfig struct {
	// Endpoint is the HTTP URL results are POSTed to. Empty disables
	// submission; results are still printed.
	Endpoint string `yaml:"endpoint"`

	// TimeoutMs bounds one submission in milliseconds. Defaults to 10000.
	TimeoutMs int `yaml:"timeout_ms"`
}

// Timeout returns the submission timeout as a duration.
func (c GradingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// InputConfig selects the audio source.
type InputConfig struct {
	// Path is the PCM16 file to analyze. Empty means stdin.
	Path string `yaml:"path"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogInfo
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.WindowMs == 0 {
		c.Capture.WindowMs = 100
	}
	if c.Capture.VAD.Engine == "" {
		c.Capture.VAD.Engine = VADRMS
	}
	if c.Capture.VAD.NoiseFloor == 0 {
		c.Capture.VAD.NoiseFloor = 500
	}
	if c.Recognizer.Engine == "" {
		if c.Recognizer.GatewayURL != "" {
			c.Recognizer.Engine = RecognizerGateway
		} else {
			c.Recognizer.Engine = RecognizerNone
		}
	}
	if c.Recognizer.Language == "" {
		c.Recognizer.Language = "en-US"
	}
	if c.Recognizer.Restart.MaxAttempts == 0 {
		c.Recognizer.Restart.MaxAttempts = 10
	}
	if c.Recognizer.Restart.BackoffMs == 0 {
		c.Recognizer.Restart.BackoffMs = 200
	}
	if c.Recognizer.Restart.BackoffMaxMs == 0 {
		c.Recognizer.Restart.BackoffMaxMs = 5000
	}
	if c.Analysis.NeutralConfidence == 0 {
		c.Analysis.NeutralConfidence = 70
	}
	if c.Grading.TimeoutMs == 0 {
		c.Grading.TimeoutMs = 10000
	}
}
