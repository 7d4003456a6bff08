package config

import "slices"

// ConfigDiff describes what changed between two configs. Log level and
// analysis settings can be hot-reloaded; capture, recognizer, and listen
// address changes need a restart to take effect.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AnalysisChanged: neutral confidence or filler vocabulary changed.
	// Applies to the next session.
	AnalysisChanged bool

	// GradingChanged: endpoint or timeout changed. Applies to the next
	// submission.
	GradingChanged bool

	// RequiresRestart: capture, recognizer, input, or listen address
	// changed. These are wired at startup.
	RequiresRestart bool
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.AnalysisChanged || d.GradingChanged || d.RequiresRestart
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.Analysis.NeutralConfidence != new.Analysis.NeutralConfidence ||
		!slices.Equal(old.Analysis.FillerWords, new.Analysis.FillerWords) {
		d.AnalysisChanged = true
	}

	if old.Grading != new.Grading {
		d.GradingChanged = true
	}

	if old.Capture != new.Capture ||
		old.Recognizer != new.Recognizer ||
		old.Input != new.Input ||
		old.ListenAddr != new.ListenAddr {
		d.RequiresRestart = true
	}

	return d
}
